package models

import (
	"time"

	"gorm.io/gorm"
)

type Region struct {
	ID                   string                 `json:"id" gorm:"primaryKey"`
	Name                 string                 `json:"name" gorm:"not null"`
	CurrencyCode         string                 `json:"currency_code" gorm:"not null"`
	TaxRate              float64                `json:"tax_rate"`
	TaxCode              *string                `json:"tax_code"`
	AutomaticTaxes       bool                   `json:"automatic_taxes" gorm:"default:true"`
	GiftCardsTaxable     bool                   `json:"gift_cards_taxable" gorm:"default:true"`
	Metadata             map[string]interface{} `json:"metadata" gorm:"serializer:json"`
	Countries            []Country              `json:"countries,omitempty" gorm:"foreignKey:RegionID"`
	PaymentProviders     []string               `json:"payment_providers" gorm:"serializer:json"`
	FulfillmentProviders []string               `json:"fulfillment_providers" gorm:"serializer:json"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

type Country struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	ISO2        string  `json:"iso_2" gorm:"column:iso_2;uniqueIndex"`
	ISO3        string  `json:"iso_3" gorm:"column:iso_3"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	RegionID    *string `json:"region_id" gorm:"index"`
}

func (r *Region) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = newID("reg")
	}
	return nil
}
