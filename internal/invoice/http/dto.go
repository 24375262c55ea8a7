package invoicehttp

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/invox/invox/internal/invoice"
)

type partyRequest struct {
	Name    string `json:"name" validate:"max=200"`
	Email   string `json:"email" validate:"omitempty,email,max=254"`
	Address string `json:"address" validate:"max=1000"`
	Phone   string `json:"phone" validate:"max=50"`
}

func (p partyRequest) party() invoice.Party {
	return invoice.Party{
		Name:    strings.TrimSpace(p.Name),
		Email:   strings.TrimSpace(p.Email),
		Address: p.Address,
		Phone:   strings.TrimSpace(p.Phone),
	}
}

type metaRequest struct {
	Number  string `json:"number" validate:"max=100"`
	Date    string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	DueDate string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
}

type pricingRequest struct {
	TaxRate       *float64 `json:"taxRate" validate:"omitempty,gte=0,lte=100"`
	DiscountType  *string  `json:"discountType" validate:"omitempty,oneof=percent fixed"`
	DiscountValue *float64 `json:"discountValue" validate:"omitempty,gte=0,lte=1e12"`
	Currency      *string  `json:"currency" validate:"omitempty,iso4217"`
	Notes         *string  `json:"notes" validate:"omitempty,max=5000"`
}

func (p pricingRequest) patch() invoice.PricingPatch {
	out := invoice.PricingPatch{
		TaxRate:       p.TaxRate,
		DiscountValue: p.DiscountValue,
		Currency:      p.Currency,
		Notes:         p.Notes,
	}
	if p.DiscountType != nil {
		dt := invoice.DiscountType(*p.DiscountType)
		out.DiscountType = &dt
	}
	return out
}

type itemRequest struct {
	ID          string   `json:"id" validate:"max=64"`
	Description string   `json:"description" validate:"max=1000"`
	Quantity    *float64 `json:"quantity" validate:"omitempty,gte=-1e12,lte=1e12"`
	UnitPrice   *float64 `json:"unitPrice" validate:"omitempty,gte=-1e12,lte=1e12"`
}

// item applies the defaults a freshly added row gets: quantity 1, price 0.
func (i itemRequest) item() invoice.LineItem {
	out := invoice.LineItem{ID: i.ID, Description: i.Description, Quantity: 1}
	if i.Quantity != nil {
		out.Quantity = *i.Quantity
	}
	if i.UnitPrice != nil {
		out.UnitPrice = *i.UnitPrice
	}
	return out
}

type itemPatchRequest struct {
	Description *string  `json:"description" validate:"omitempty,max=1000"`
	Quantity    *float64 `json:"quantity" validate:"omitempty,gte=-1e12,lte=1e12"`
	UnitPrice   *float64 `json:"unitPrice" validate:"omitempty,gte=-1e12,lte=1e12"`
}

type itemsRequest struct {
	Items []itemRequest `json:"items" validate:"max=500,dive"`
}

type stateResponse struct {
	Document invoice.Document `json:"document"`
	Totals   invoice.Totals   `json:"totals"`
	Messages []string         `json:"messages"`
	Warning  string           `json:"warning,omitempty"`
}

type savedListResponse struct {
	Names   []string          `json:"names"`
	Corrupt map[string]string `json:"corrupt,omitempty"`
}

type enqueuedResponse struct {
	TaskID string `json:"taskId"`
	Queue  string `json:"queue"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessages(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "iso4217":
			out = append(out, field+" must be an ISO 4217 currency code")
		case "oneof":
			out = append(out, field+" must be one of: "+fe.Param())
		case "datetime":
			out = append(out, field+" must be a YYYY-MM-DD date")
		case "email":
			out = append(out, field+" must be an email address")
		case "lte":
			out = append(out, field+" must be at most "+fe.Param())
		case "gte":
			out = append(out, field+" must be at least "+fe.Param())
		default:
			out = append(out, strings.TrimSpace(field+" failed "+fe.Tag()+" "+fe.Param()))
		}
	}
	return out
}
