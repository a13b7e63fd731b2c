// Package entity defines the per-type field schemas of the QuickStart
// wizard: which fields a staged row needs before it can be submitted, and
// how a field map translates into the backend's batch-create payloads.
// The draft store consumes only the readiness predicate; the submission
// orchestrator consumes the payload builders.
package entity

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/foliodraft/foliodraft/internal/draft"
)

// Field names shared by the wizard forms, the enrichment field mapping and
// the payload builders.
const (
	FieldName          = "name"
	FieldCurrency      = "currency"
	FieldAccountID     = "accountId"
	FieldAccountType   = "accountType"
	FieldSymbol        = "symbol"
	FieldQuantity      = "quantity"
	FieldPrice         = "price"
	FieldAmount        = "amount"
	FieldPurchaseDate  = "purchaseDate"
	FieldMetalType     = "metalType"
	FieldValue         = "value"
	FieldBalance       = "balance"
	FieldInterestRate  = "interestRate"
	FieldLiabilityType = "liabilityType"
)

// validate is shared by all builders. The custom "decimal" rule accepts any
// value shopspring/decimal can parse; empty strings fail it.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(fl.Field().String())
		return err == nil
	})
	return v
}

// Input shapes, validated before conversion to wire payloads.

type accountInput struct {
	Name        string `validate:"required"`
	AccountType string `validate:"required"`
	Currency    string `validate:"required,len=3,alpha"`
}

type securityInput struct {
	AccountID    string `validate:"required"`
	Symbol       string `validate:"required"`
	Quantity     string `validate:"required,decimal"`
	Price        string `validate:"required,decimal"`
	PurchaseDate string `validate:"omitempty,datetime=2006-01-02"`
}

type cashInput struct {
	AccountID string `validate:"required"`
	Amount    string `validate:"required,decimal"`
	Currency  string `validate:"required,len=3,alpha"`
}

type cryptoInput struct {
	AccountID string `validate:"required"`
	Symbol    string `validate:"required"`
	Quantity  string `validate:"required,decimal"`
	Price     string `validate:"required,decimal"`
}

type metalInput struct {
	AccountID string `validate:"required"`
	MetalType string `validate:"required"`
	Quantity  string `validate:"required,decimal"`
	Price     string `validate:"required,decimal"`
}

type otherAssetInput struct {
	AccountID string `validate:"required"`
	Name      string `validate:"required"`
	Value     string `validate:"required,decimal"`
}

type liabilityInput struct {
	Name         string `validate:"required"`
	Balance      string `validate:"required,decimal"`
	InterestRate string `validate:"omitempty,decimal"`
}

// Wire payloads sent to the backend batch-create endpoints.

type AccountPayload struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

type SecurityPayload struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	PurchaseDate string          `json:"purchaseDate,omitempty"`
}

type CashPayload struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type CryptoPayload struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type MetalPayload struct {
	Metal    string          `json:"metal"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type OtherAssetPayload struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

type LiabilityPayload struct {
	Name         string           `json:"name"`
	Type         string           `json:"type,omitempty"`
	Balance      decimal.Decimal  `json:"balance"`
	InterestRate *decimal.Decimal `json:"interestRate,omitempty"`
}

// BuildPayload converts a draft row's fields into the wire payload for its
// entity type. It fails when a required field is missing or malformed, which
// makes it the single source of truth for the readiness predicate.
func BuildPayload(t draft.EntityType, f draft.Fields) (interface{}, error) {
	switch t {
	case draft.EntityAccount:
		return buildAccount(f)
	case draft.EntitySecurity:
		return buildSecurity(f)
	case draft.EntityCash:
		return buildCash(f)
	case draft.EntityCrypto:
		return buildCrypto(f)
	case draft.EntityMetal:
		return buildMetal(f)
	case draft.EntityOtherAsset:
		return buildOtherAsset(f)
	case draft.EntityLiability:
		return buildLiability(f)
	default:
		return nil, fmt.Errorf("unknown entity type %q", t)
	}
}

// Readiness is the predicate injected into the draft store: a row is ready
// exactly when its payload builds cleanly.
func Readiness(t draft.EntityType, f draft.Fields) bool {
	_, err := BuildPayload(t, f)
	return err == nil
}

// GroupAccountID returns the target account of a position row, or "" for
// types that are not scoped to an account. Used by the submission
// orchestrator to form sub-groups.
func GroupAccountID(t draft.EntityType, f draft.Fields) string {
	if t.IsPosition() {
		return f[FieldAccountID]
	}
	return ""
}

func buildAccount(f draft.Fields) (AccountPayload, error) {
	in := accountInput{
		Name:        f[FieldName],
		AccountType: f[FieldAccountType],
		Currency:    f[FieldCurrency],
	}
	if err := validate.Struct(in); err != nil {
		return AccountPayload{}, fmt.Errorf("account fields invalid: %w", err)
	}
	return AccountPayload{Name: in.Name, Type: in.AccountType, Currency: in.Currency}, nil
}

func buildSecurity(f draft.Fields) (SecurityPayload, error) {
	in := securityInput{
		AccountID:    f[FieldAccountID],
		Symbol:       f[FieldSymbol],
		Quantity:     f[FieldQuantity],
		Price:        f[FieldPrice],
		PurchaseDate: f[FieldPurchaseDate],
	}
	if err := validate.Struct(in); err != nil {
		return SecurityPayload{}, fmt.Errorf("security fields invalid: %w", err)
	}
	qty, _ := decimal.NewFromString(in.Quantity)
	price, _ := decimal.NewFromString(in.Price)
	return SecurityPayload{
		Symbol:       in.Symbol,
		Name:         f[FieldName],
		Quantity:     qty,
		Price:        price,
		PurchaseDate: in.PurchaseDate,
	}, nil
}

func buildCash(f draft.Fields) (CashPayload, error) {
	in := cashInput{
		AccountID: f[FieldAccountID],
		Amount:    f[FieldAmount],
		Currency:  f[FieldCurrency],
	}
	if err := validate.Struct(in); err != nil {
		return CashPayload{}, fmt.Errorf("cash fields invalid: %w", err)
	}
	amount, _ := decimal.NewFromString(in.Amount)
	return CashPayload{Amount: amount, Currency: in.Currency}, nil
}

func buildCrypto(f draft.Fields) (CryptoPayload, error) {
	in := cryptoInput{
		AccountID: f[FieldAccountID],
		Symbol:    f[FieldSymbol],
		Quantity:  f[FieldQuantity],
		Price:     f[FieldPrice],
	}
	if err := validate.Struct(in); err != nil {
		return CryptoPayload{}, fmt.Errorf("crypto fields invalid: %w", err)
	}
	qty, _ := decimal.NewFromString(in.Quantity)
	price, _ := decimal.NewFromString(in.Price)
	return CryptoPayload{Symbol: in.Symbol, Name: f[FieldName], Quantity: qty, Price: price}, nil
}

func buildMetal(f draft.Fields) (MetalPayload, error) {
	in := metalInput{
		AccountID: f[FieldAccountID],
		MetalType: f[FieldMetalType],
		Quantity:  f[FieldQuantity],
		Price:     f[FieldPrice],
	}
	if err := validate.Struct(in); err != nil {
		return MetalPayload{}, fmt.Errorf("metal fields invalid: %w", err)
	}
	qty, _ := decimal.NewFromString(in.Quantity)
	price, _ := decimal.NewFromString(in.Price)
	return MetalPayload{Metal: in.MetalType, Quantity: qty, Price: price}, nil
}

func buildOtherAsset(f draft.Fields) (OtherAssetPayload, error) {
	in := otherAssetInput{
		AccountID: f[FieldAccountID],
		Name:      f[FieldName],
		Value:     f[FieldValue],
	}
	if err := validate.Struct(in); err != nil {
		return OtherAssetPayload{}, fmt.Errorf("other asset fields invalid: %w", err)
	}
	value, _ := decimal.NewFromString(in.Value)
	return OtherAssetPayload{Name: in.Name, Value: value}, nil
}

func buildLiability(f draft.Fields) (LiabilityPayload, error) {
	in := liabilityInput{
		Name:         f[FieldName],
		Balance:      f[FieldBalance],
		InterestRate: f[FieldInterestRate],
	}
	if err := validate.Struct(in); err != nil {
		return LiabilityPayload{}, fmt.Errorf("liability fields invalid: %w", err)
	}
	balance, _ := decimal.NewFromString(in.Balance)
	payload := LiabilityPayload{
		Name:    in.Name,
		Type:    f[FieldLiabilityType],
		Balance: balance,
	}
	if in.InterestRate != "" {
		rate, _ := decimal.NewFromString(in.InterestRate)
		payload.InterestRate = &rate
	}
	return payload, nil
}
