package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Product struct {
	ID            string                 `json:"id" gorm:"primaryKey"`
	Title         string                 `json:"title" gorm:"not null"`
	Subtitle      *string                `json:"subtitle"`
	Description   *string                `json:"description"`
	Handle        string                 `json:"handle" gorm:"uniqueIndex"`
	IsGiftcard    bool                   `json:"is_giftcard"`
	Discountable  bool                   `json:"discountable" gorm:"default:true"`
	Status        ProductStatus          `json:"status" gorm:"default:draft"`
	Thumbnail     *string                `json:"thumbnail"`
	Weight        *int                   `json:"weight"`
	Length        *int                   `json:"length"`
	Height        *int                   `json:"height"`
	Width         *int                   `json:"width"`
	HSCode        *string                `json:"hs_code"`
	OriginCountry *string                `json:"origin_country"`
	MIDCode       *string                `json:"mid_code"`
	Material      *string                `json:"material"`
	Metadata      map[string]interface{} `json:"metadata" gorm:"serializer:json"`
	TypeID        *string                `json:"type_id"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`

	Type       *ProductType       `json:"type,omitempty" gorm:"foreignKey:TypeID"`
	Tags       []ProductTag       `json:"tags,omitempty" gorm:"many2many:product_tags"`
	Options    []ProductOption    `json:"options,omitempty" gorm:"foreignKey:ProductID"`
	Variants   []ProductVariant   `json:"variants,omitempty" gorm:"foreignKey:ProductID"`
	Metafields []ProductMetafield `json:"metafields,omitempty" gorm:"foreignKey:ProductID"`
}

type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusProposed  ProductStatus = "proposed"
	ProductStatusPublished ProductStatus = "published"
	ProductStatusRejected  ProductStatus = "rejected"
)

type ProductType struct {
	ID        string                 `json:"id" gorm:"primaryKey"`
	Value     string                 `json:"value" gorm:"not null"`
	Metadata  map[string]interface{} `json:"metadata" gorm:"serializer:json"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

type ProductTag struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Value     string    `json:"value" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProductOption struct {
	ID        string               `json:"id" gorm:"primaryKey"`
	Title     string               `json:"title" gorm:"not null"`
	ProductID string               `json:"product_id" gorm:"index"`
	Values    []ProductOptionValue `json:"values,omitempty" gorm:"foreignKey:OptionID"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

type ProductOptionValue struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Value     string    `json:"value"`
	OptionID  string    `json:"option_id" gorm:"index"`
	VariantID string    `json:"variant_id" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProductVariant struct {
	ID                string                 `json:"id" gorm:"primaryKey"`
	Title             string                 `json:"title" gorm:"not null"`
	ProductID         string                 `json:"product_id" gorm:"index"`
	SKU               *string                `json:"sku"`
	Barcode           *string                `json:"barcode"`
	EAN               *string                `json:"ean"`
	UPC               *string                `json:"upc"`
	InventoryQuantity int                    `json:"inventory_quantity"`
	AllowBackorder    bool                   `json:"allow_backorder"`
	ManageInventory   bool                   `json:"manage_inventory" gorm:"default:true"`
	Weight            *int                   `json:"weight"`
	Length            *int                   `json:"length"`
	Height            *int                   `json:"height"`
	Width             *int                   `json:"width"`
	OriginCountry     *string                `json:"origin_country"`
	Material          *string                `json:"material"`
	VariantRank       int                    `json:"variant_rank"`
	Metadata          map[string]interface{} `json:"metadata" gorm:"serializer:json"`
	Prices            []MoneyAmount          `json:"prices,omitempty" gorm:"foreignKey:VariantID"`
	Options           []ProductOptionValue   `json:"options,omitempty" gorm:"foreignKey:VariantID"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

type MoneyAmount struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	CurrencyCode string    `json:"currency_code" gorm:"not null"`
	Amount       int64     `json:"amount"`
	MinQuantity  *int      `json:"min_quantity"`
	MaxQuantity  *int      `json:"max_quantity"`
	VariantID    string    `json:"variant_id" gorm:"index"`
	RegionID     *string   `json:"region_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProductMetafield struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Key       string    `json:"key" gorm:"not null"`
	Value     string    `json:"value"`
	ProductID string    `json:"product_id" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// newID mirrors the commerce backend's prefixed identifiers, e.g. prod_<uuid>.
func newID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = newID("prod")
	}
	return nil
}

func (t *ProductType) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = newID("ptyp")
	}
	return nil
}

func (t *ProductTag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = newID("ptag")
	}
	return nil
}

func (o *ProductOption) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = newID("opt")
	}
	return nil
}

func (v *ProductOptionValue) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = newID("optval")
	}
	return nil
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = newID("variant")
	}
	return nil
}

func (m *MoneyAmount) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = newID("ma")
	}
	return nil
}

func (m *ProductMetafield) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = newID("pmf")
	}
	return nil
}
