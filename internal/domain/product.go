package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryElectronics   Category = "Electronics"
	CategoryClothing      Category = "Clothing"
	CategoryBooks         Category = "Books"
	CategoryHomeGarden    Category = "Home & Garden"
	CategorySports        Category = "Sports"
	CategoryToys          Category = "Toys"
	CategoryFoodBeverages Category = "Food & Beverages"
	CategoryHealthBeauty  Category = "Health & Beauty"
)

// Categories is the fixed catalog enumeration, in display order.
var Categories = []Category{
	CategoryElectronics,
	CategoryClothing,
	CategoryBooks,
	CategoryHomeGarden,
	CategorySports,
	CategoryToys,
	CategoryFoodBeverages,
	CategoryHealthBeauty,
}

// ParseCategory matches a category name case-insensitively.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// Product is a catalog entry. StockQuantity is never negative.
type Product struct {
	ID            int64           `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Name          string          `gorm:"size:100;index;not null" json:"name"`
	Description   string          `gorm:"size:1000" json:"description"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Category      Category        `gorm:"size:32;index;not null" json:"category"`
	StockQuantity int             `gorm:"not null;default:0" json:"stock_quantity"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	ImageURL      string          `gorm:"size:500" json:"image_url"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "products"
}
