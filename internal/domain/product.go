package domain

import (
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LocalizedValue struct {
	LanguageTag string `bson:"language_tag" json:"language_tag"`
	Value       string `bson:"value" json:"value"`
}

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	SKU         string             `bson:"sku" json:"sku"`
	ItemName    []LocalizedValue   `bson:"item_name" json:"item_name"`
	Brand       []LocalizedValue   `bson:"brand" json:"brand"`
	Price       *float64           `bson:"price,omitempty" json:"price,omitempty"`
	MainImageID string             `bson:"main_image_id,omitempty" json:"main_image_id,omitempty"`
	ProductType string             `bson:"product_type,omitempty" json:"product_type,omitempty"`
	Country     string             `bson:"country,omitempty" json:"country,omitempty"`
	Marketplace string             `bson:"marketplace,omitempty" json:"marketplace,omitempty"`
}

// UnitPrice returns the catalog price, or zero when the product has none.
func (p Product) UnitPrice() decimal.Decimal {
	if p.Price == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*p.Price)
}

// Snapshot copies the display fields that are embedded into a line item.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ItemName:    append([]LocalizedValue(nil), p.ItemName...),
		Brand:       append([]LocalizedValue(nil), p.Brand...),
		MainImageID: p.MainImageID,
		ProductType: p.ProductType,
	}
}
