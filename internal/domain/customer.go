package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

const BasketTypeCurrent = "CURRENT"

type Customer struct {
	ObjectID     primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ID           int64              `bson:"id" json:"id"`
	Name         string             `bson:"customer_name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	Baskets      []Basket           `bson:"baskets" json:"-"`
	// Version is incremented on every basket write and checked by the store.
	Version int64 `bson:"version" json:"-"`
}

type Basket struct {
	ID         string     `bson:"id" json:"id,omitempty"`
	Type       string     `bson:"type" json:"type,omitempty"`
	Products   []LineItem `bson:"products" json:"products"`
	TotalPrice float64    `bson:"total_price" json:"total_price"`
	FinalPrice float64    `bson:"final_price" json:"final_price"`
}

type LineItem struct {
	SKU         string          `bson:"sku" json:"sku"`
	Quantity    int             `bson:"quantity" json:"quantity"`
	Price       float64         `bson:"price" json:"price"`
	FullProduct ProductSnapshot `bson:"full_product" json:"full_product"`
}

type ProductSnapshot struct {
	ItemName    []LocalizedValue `bson:"item_name" json:"item_name"`
	Brand       []LocalizedValue `bson:"brand" json:"brand"`
	MainImageID string           `bson:"main_image_id,omitempty" json:"main_image_id,omitempty"`
	ProductType string           `bson:"product_type,omitempty" json:"product_type,omitempty"`
}

// Clone returns a copy that shares no slices with b.
func (b Basket) Clone() Basket {
	out := b
	out.Products = make([]LineItem, len(b.Products))
	copy(out.Products, b.Products)
	return out
}
