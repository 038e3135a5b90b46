package domain

import "github.com/shopspring/decimal"

// Owner identifies whose cart a request operates on. Exactly one of UserID
// or SessionID is set.
type Owner struct {
	UserID    string
	SessionID string
}

func UserOwner(userID string) Owner {
	return Owner{UserID: userID}
}

func SessionOwner(sessionID string) Owner {
	return Owner{SessionID: sessionID}
}

func (o Owner) Authenticated() bool {
	return o.UserID != ""
}

func (o Owner) Validate() error {
	switch {
	case o.UserID == "" && o.SessionID == "":
		return NewValidationError("owner", "user or session is required")
	case o.UserID != "" && o.SessionID != "":
		return NewValidationError("owner", "cart owner must be a user or a session, not both")
	}
	return nil
}

func (o Owner) String() string {
	if o.UserID != "" {
		return "user:" + o.UserID
	}
	return "session:" + o.SessionID
}

type Cart struct {
	ID    string     `json:"id"`
	Owner Owner      `json:"-"`
	Lines []CartLine `json:"lines"`
}

// CartLine is one product entry in a cart, joined with the live product row
// it references.
type CartLine struct {
	ID          string          `json:"id"`
	CartID      string          `json:"cart_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Stock       int             `json:"-"`
	Active      bool            `json:"-"`
	Quantity    int             `json:"quantity"`
}

func (l CartLine) Cost() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
