package main

// Role values assignable through the registry. Admin is fixed at
// initialization and never stored as a grant.
const (
	RoleAdmin       = "admin"
	RoleFarmer      = "farmer"
	RoleThirdParty  = "thirdparty"
	RoleDeliveryHub = "deliveryhub"
	RoleCustomer    = "customer"
)

// ProductState is the position of a product in its lifecycle. States advance
// strictly in declaration order and never repeat or skip.
type ProductState uint8

const (
	Harvested ProductState = iota
	PurchasedByThirdParty
	ShippedByFarmer
	ReceivedByThirdParty
	SoldByThirdParty
	PurchasedByCustomer
	ShippedByThirdParty
	ReceivedByDeliveryHub
	ShippedByDeliveryHub
	ReceivedByCustomer // terminal
)

var stateNames = [...]string{
	"Harvested",
	"PurchasedByThirdParty",
	"ShippedByFarmer",
	"ReceivedByThirdParty",
	"SoldByThirdParty",
	"PurchasedByCustomer",
	"ShippedByThirdParty",
	"ReceivedByDeliveryHub",
	"ShippedByDeliveryHub",
	"ReceivedByCustomer",
}

func (s ProductState) String() string {
	if int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Participant is a role grant stored in the registry
type Participant struct {
	Principal string `json:"principal"`
	Role      string `json:"role"`
	GrantedBy string `json:"grantedBy"`
}

// ProductDetails holds the commercial and provenance values of a product.
// Each field is written exactly once, by the transition that produces it.
type ProductDetails struct {
	Price           uint64 `json:"price"`           // farmer's ask, set at harvest
	PriceThirdParty uint64 `json:"priceThirdParty"` // resale ask, set at third-party sale
	FeeShip         uint64 `json:"feeShip"`         // shipping fee, chosen by customer at purchase
	Quantity        uint64 `json:"quantity"`
	FarmLongitude   string `json:"farmLongitude"`
	FarmLatitude    string `json:"farmLatitude"`
	Temperature     string `json:"temperature"`
	Humidity        uint64 `json:"humidity"`
	// geo-coordinates captured at the receive events
	ThirdPartyLongitude string `json:"thirdPartyLongitude"`
	ThirdPartyLatitude  string `json:"thirdPartyLatitude"`
	HubLongitude        string `json:"hubLongitude"`
	HubLatitude         string `json:"hubLatitude"`
}

// Product is one entry in the ledger. Owner is the current custodian; the
// farmer/thirdParty/deliveryHub/customer principals are recorded as each
// party enters the chain and never change afterwards. Escrow is the amount
// currently held by the contract on behalf of this product.
type Product struct {
	UID         uint64         `json:"uid"`
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	ImageURLs   []string       `json:"imageUrls"`
	Owner       string         `json:"owner"`
	Farmer      string         `json:"farmer"`
	ThirdParty  string         `json:"thirdParty"`
	DeliveryHub string         `json:"deliveryHub"`
	Customer    string         `json:"customer"`
	State       ProductState   `json:"state"`
	Escrow      uint64         `json:"escrow"`
	Details     ProductDetails `json:"productDetails"`
}

// TokenConfig binds the contract to its settlement token chaincode.
// Written once at InitLedger.
type TokenConfig struct {
	Chaincode     string `json:"chaincode"`
	Channel       string `json:"channel"`
	EscrowAccount string `json:"escrowAccount"`
}
