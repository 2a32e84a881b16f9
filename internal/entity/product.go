package entity

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	ProductStatusAvailable = "available"
	ProductStatusSold      = "sold"
	ProductStatusReserved  = "reserved"
	ProductStatusInactive  = "inactive"
)

const (
	ConditionNew         = "nuevo"
	ConditionLikeNew     = "como_nuevo"
	ConditionGood        = "bueno"
	ConditionFair        = "regular"
	ConditionNeedsRepair = "necesita_reparacion"
)

const (
	DeliveryPickup   = "pickup"
	DeliveryShipping = "shipping"
	DeliveryBoth     = "both"
)

const (
	MaxImagesPerProduct = 5
	MaxTagsLength       = 200
	MinProductPrice     = 0.01
	newProductWindow    = 24 * time.Hour
)

var ProductStatuses = []string{ProductStatusAvailable, ProductStatusSold, ProductStatusReserved, ProductStatusInactive}

var Conditions = []string{ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionNeedsRepair}

var DeliveryTypes = []string{DeliveryPickup, DeliveryShipping, DeliveryBoth}

type Product struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string         `gorm:"size:100;not null" json:"name"`
	Description  string         `gorm:"type:text;not null" json:"description"`
	CategoryID   *uuid.UUID     `gorm:"type:uuid;index" json:"category_id"`
	Category     *Category      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"category,omitempty"`
	Price        float64        `gorm:"type:decimal(10,2);not null;check:chk_products_price_min,price >= 0.01" json:"price"`
	Condition    string         `gorm:"size:30;not null;default:bueno" json:"condition"`
	Status       string         `gorm:"size:20;not null;default:available;index" json:"status"`
	Stock        int            `gorm:"not null;default:1;check:chk_products_stock_min,stock >= 1" json:"stock"`
	IsMultiple   bool           `gorm:"not null;default:false" json:"is_multiple"`
	DeliveryType string         `gorm:"size:20;not null;default:pickup" json:"delivery_type"`
	SellerID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"seller_id"`
	Seller       *Student       `gorm:"constraint:OnDelete:CASCADE" json:"seller,omitempty"`
	Views        int            `gorm:"not null;default:0" json:"views"`
	Tags         pq.StringArray `gorm:"type:text[]" json:"tags"`
	Images       []ProductImage `gorm:"constraint:OnDelete:CASCADE" json:"images,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID, err = uuid.NewV7()
	}
	return
}

// CanEdit reports whether the student owns the product.
func (p *Product) CanEdit(studentID uuid.UUID) bool {
	return p.SellerID == studentID
}

// CanDelete has the same rule as CanEdit: only the seller.
func (p *Product) CanDelete(studentID uuid.UUID) bool {
	return p.SellerID == studentID
}

func (p *Product) HasStock() bool {
	return p.Stock > 0
}

// IsNew reports whether the product was published within the last 24 hours.
func (p *Product) IsNew(now time.Time) bool {
	return now.Sub(p.CreatedAt) < newProductWindow
}

func (p *Product) IsAvailable() bool {
	return p.Status == ProductStatusAvailable
}

// CanTransition is the product lifecycle policy. Every status may move to every other
// status; the seller decides. A stricter lifecycle would key a table on (from, to) here.
func CanTransition(from, to string) bool {
	return IsValidProductStatus(from) && IsValidProductStatus(to)
}

func IsValidProductStatus(status string) bool {
	return slices.Contains(ProductStatuses, status)
}

func IsValidCondition(condition string) bool {
	return slices.Contains(Conditions, condition)
}

func IsValidDeliveryType(deliveryType string) bool {
	return slices.Contains(DeliveryTypes, deliveryType)
}

// ParseTags turns the comma separated input into a normalized, de-duplicated list.
func ParseTags(raw string) pq.StringArray {
	tags := pq.StringArray{}
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

type ProductImage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index:idx_product_images_order,priority:1" json:"product_id"`
	URL       string    `gorm:"type:text;not null" json:"url"`
	Position  int       `gorm:"not null;default:0;index:idx_product_images_order,priority:2" json:"position"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (i *ProductImage) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID, err = uuid.NewV7()
	}
	return
}
