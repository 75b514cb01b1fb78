package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// SmartContract tracks products from farmer to customer. Every transition is
// gated on the caller's role and the product's current state, and escrowed
// settlement moves through the external token ledger in the same transaction.
type SmartContract struct {
	contractapi.Contract

	// token overrides the chaincode-invoking settlement adapter; tests
	// inject an in-memory ledger here.
	token TokenLedger
}

const (
	productCountKey = "COUNT_PRODUCT"
	codePrefix      = "CODE_"
)

func productKey(uid uint64) string {
	// zero-padded so range scans walk products in uid order
	return fmt.Sprintf("PRODUCT_%010d", uid)
}

// HarvestProduct creates a product owned by the calling farmer and returns
// its uid. Uids are sequential and never reused.
func (s *SmartContract) HarvestProduct(ctx contractapi.TransactionContextInterface, name, code string, price uint64, category string, images []string, description string, quantity uint64, longitude, latitude, temperature string, humidity uint64) (uint64, error) {
	caller, err := s.requireRole(ctx, RoleFarmer)
	if err != nil {
		return 0, err
	}

	count, err := s.productCount(ctx)
	if err != nil {
		return 0, err
	}
	uid := count + 1

	product := Product{
		UID:         uid,
		Code:        code,
		Name:        name,
		Category:    category,
		Description: description,
		ImageURLs:   images,
		Owner:       caller,
		Farmer:      caller,
		State:       Harvested,
		Details: ProductDetails{
			Price:         price,
			Quantity:      quantity,
			FarmLongitude: longitude,
			FarmLatitude:  latitude,
			Temperature:   temperature,
			Humidity:      humidity,
		},
	}
	if err := s.writeProduct(ctx, &product); err != nil {
		return 0, err
	}
	if err := ctx.GetStub().PutState(codePrefix+code, []byte(strconv.FormatUint(uid, 10))); err != nil {
		return 0, fmt.Errorf("failed to index product code: %v", err)
	}
	if err := ctx.GetStub().PutState(productCountKey, []byte(strconv.FormatUint(uid, 10))); err != nil {
		return 0, fmt.Errorf("failed to store product count: %v", err)
	}
	return uid, nil
}

// PurchaseByThirdParty pulls the farmer's asking price from the caller into
// contract escrow. The product stays in the farmer's custody until shipped
// and received.
func (s *SmartContract) PurchaseByThirdParty(ctx contractapi.TransactionContextInterface, uid uint64) error {
	caller, err := s.requireRole(ctx, RoleThirdParty)
	if err != nil {
		return err
	}
	product, err := s.readProduct(ctx, uid)
	if err != nil {
		return err
	}
	if product.State != Harvested {
		return s.stateError(product, Harvested)
	}

	token, cfg, err := s.settlement(ctx)
	if err != nil {
		return err
	}
	if err := token.TransferFrom(caller, cfg.EscrowAccount, product.Details.Price); err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	}

	product.ThirdParty = caller
	product.Escrow += product.Details.Price
	product.State = PurchasedByThirdParty
	return s.writeProduct(ctx, product)
}

// ShipByFarmer marks the product as shipped by the farmer who harvested it.
func (s *SmartContract) ShipByFarmer(ctx contractapi.TransactionContextInterface, uid uint64) error {
	caller, err := s.requireRole(ctx, RoleFarmer)
	if err != nil {
		return err
	}
	product, err := s.readProduct(ctx, uid)
	if err != nil {
		return err
	}
	if product.State != PurchasedByThirdParty {
		return s.stateError(product, PurchasedByThirdParty)
	}
	if product.Owner != caller {
		return fmt.Errorf("%w: product %d is not owned by the sender", ErrNotOwner, uid)
	}

	product.State = ShippedByFarmer
	return s.writeProduct(ctx, product)
}

// ReceiveByThirdParty confirms delivery to the purchasing third party,
// transfers custody and releases the escrowed price to the farmer.
func (s *SmartContract) ReceiveByThirdParty(ctx contractapi.TransactionContextInterface, uid uint64, longitude, latitude string) error {
	caller, err := s.requireRole(ctx, RoleThirdParty)
	if err != nil {
		return err
	}
	product, err := s.readProduct(ctx, uid)
	if err != nil {
		return err
	}
	if product.State != ShippedByFarmer {
		return s.stateError(product, ShippedByFarmer)
	}
	if product.ThirdParty != caller {
		return fmt.Errorf("%w: product %d was purchased by a different third party", ErrNotOwner, uid)
	}

	token, _, err := s.settlement(ctx)
	if err != nil {
		return err
	}
	if err := token.Transfer(product.Farmer, product.Details.Price); err != nil {
		return fmt.Errorf("failed to release escrow to farmer: %v", err)
	}

	product.Owner = caller
	product.Escrow -= product.Details.Price
	product.Details.ThirdPartyLongitude = longitude
	product.Details.ThirdPartyLatitude = latitude
	product.State = ReceivedByThirdParty
	return s.writeProduct(ctx, product)
}

// SellByThirdParty lists the product for resale at the given price. No funds
// move.
func (s *SmartContract) SellByThirdParty(ctx contractapi.TransactionContextInterface, uid uint64, images []string, priceThirdParty uint64) error {
	caller, err := s.requireRole(ctx, RoleThirdParty)
	if err != nil {
		return err
	}
	product, err := s.readProduct(ctx, uid)
	if err != nil {
		return err
	}
	if product.State != ReceivedByThirdParty {
		return s.stateError(product, ReceivedByThirdParty)
	}
	if product.Owner != caller {
		return fmt.Errorf("%w: product %d is not owned by the sender", ErrNotOwner, uid)
	}

	product.ImageURLs = append(product.ImageURLs, images...)
	product.Details.PriceThirdParty = priceThirdParty
	product.State = SoldByThirdParty
	return s.writeProduct(ctx, product)
}

// PurchaseByCustomer pulls the resale price plus the caller-chosen shipping
// fee into contract escrow and records the caller as the product's customer.
func (s *SmartContract) PurchaseByCustomer(ctx contractapi.TransactionContextInterface, uid uint64, feeShip uint64) error {
	caller, err := s.requireRole(ctx, RoleCustomer)
	if err != nil {
		return err
	}
	product, err := s.readProduct(ctx, uid)
	if err != nil {
		return err
	}
	if product.State != SoldByThirdParty {
		return s.stateError(product, SoldByThirdParty)
	}

	token, cfg, err := s.settlement(ctx)
	if err != nil {
		return err
	}
	amount := product.Details.PriceThirdParty + feeShip
	if err := token.TransferFrom(caller, cfg.EscrowAccount, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	}

	product.Customer = caller
	product.Details.FeeShip = feeShip
	product.Escrow += amount
	product.State = PurchasedByCustomer
	return s.writeProduct(ctx, product)
}

// ShipByThirdParty marks the product as handed to delivery by its owner.
func (s *SmartContract) ShipByThirdParty(ctx contractapi.TransactionContextInterface, uid uint64) error {
	caller, err := s.requireRole(ctx, RoleThirdParty)
	if err != nil {
		return err
	}
	product, err := s.readProduct(ctx, uid)
	if err != nil {
		return err
	}
	if product.State != PurchasedByCustomer {
		return s.stateError(product, PurchasedByCustomer)
	}
	if product.Owner != caller {
		return fmt.Errorf("%w: product %d is not owned by the sender", ErrNotOwner, uid)
	}

	product.State = ShippedByThirdParty
	return s.writeProduct(ctx, product)
}

// ReceiveByDeliveryHub takes the product into the calling hub's custody.
func (s *SmartContract) ReceiveByDeliveryHub(ctx contractapi.TransactionContextInterface, uid uint64, longitude, latitude string) error {
	caller, err := s.requireRole(ctx, RoleDeliveryHub)
	if err != nil {
		return err
	}
	product, err := s.readProduct(ctx, uid)
	if err != nil {
		return err
	}
	if product.State != ShippedByThirdParty {
		return s.stateError(product, ShippedByThirdParty)
	}

	product.DeliveryHub = caller
	product.Owner = caller
	product.Details.HubLongitude = longitude
	product.Details.HubLatitude = latitude
	product.State = ReceivedByDeliveryHub
	return s.writeProduct(ctx, product)
}

// ShipByDeliveryHub marks the product as out for final delivery.
func (s *SmartContract) ShipByDeliveryHub(ctx contractapi.TransactionContextInterface, uid uint64) error {
	caller, err := s.requireRole(ctx, RoleDeliveryHub)
	if err != nil {
		return err
	}
	product, err := s.readProduct(ctx, uid)
	if err != nil {
		return err
	}
	if product.State != ReceivedByDeliveryHub {
		return s.stateError(product, ReceivedByDeliveryHub)
	}
	if product.Owner != caller {
		return fmt.Errorf("%w: product %d is not owned by the sender", ErrNotOwner, uid)
	}

	product.State = ShippedByDeliveryHub
	return s.writeProduct(ctx, product)
}

// ReceiveByCustomer confirms final delivery to the purchasing customer,
// releasing the resale price to the third party and the shipping fee to the
// delivery hub. Terminal; the escrow for the product returns to zero. Both
// releases commit with the transaction or abort with it.
func (s *SmartContract) ReceiveByCustomer(ctx contractapi.TransactionContextInterface, uid uint64) error {
	caller, err := s.requireRole(ctx, RoleCustomer)
	if err != nil {
		return err
	}
	product, err := s.readProduct(ctx, uid)
	if err != nil {
		return err
	}
	if product.State != ShippedByDeliveryHub {
		return s.stateError(product, ShippedByDeliveryHub)
	}
	if product.Customer != caller {
		return fmt.Errorf("%w: product %d was purchased by a different customer", ErrNotOwner, uid)
	}

	token, _, err := s.settlement(ctx)
	if err != nil {
		return err
	}
	if err := token.Transfer(product.ThirdParty, product.Details.PriceThirdParty); err != nil {
		return fmt.Errorf("failed to release escrow to third party: %v", err)
	}
	if err := token.Transfer(product.DeliveryHub, product.Details.FeeShip); err != nil {
		return fmt.Errorf("failed to release escrow to delivery hub: %v", err)
	}

	product.Owner = caller
	product.Escrow -= product.Details.PriceThirdParty + product.Details.FeeShip
	product.State = ReceivedByCustomer
	return s.writeProduct(ctx, product)
}

// GetProduct retrieves a product by uid.
func (s *SmartContract) GetProduct(ctx contractapi.TransactionContextInterface, uid uint64) (*Product, error) {
	return s.readProduct(ctx, uid)
}

// GetProductByCode retrieves a product through the code index. When two
// products share a code the index points at the most recently harvested one.
func (s *SmartContract) GetProductByCode(ctx contractapi.TransactionContextInterface, code string) (*Product, error) {
	uidBytes, err := ctx.GetStub().GetState(codePrefix + code)
	if err != nil {
		return nil, fmt.Errorf("failed to read code index: %v", err)
	}
	if uidBytes == nil {
		return nil, fmt.Errorf("%w: no product with code %s", ErrNotFound, code)
	}
	uid, err := strconv.ParseUint(string(uidBytes), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid code index entry '%s': %v", uidBytes, err)
	}
	return s.readProduct(ctx, uid)
}

// GetProductCount returns the number of products ever created.
func (s *SmartContract) GetProductCount(ctx contractapi.TransactionContextInterface) (uint64, error) {
	return s.productCount(ctx)
}

// GetProductState returns the numeric lifecycle state of a product.
func (s *SmartContract) GetProductState(ctx contractapi.TransactionContextInterface, uid uint64) (ProductState, error) {
	product, err := s.readProduct(ctx, uid)
	if err != nil {
		return 0, err
	}
	return product.State, nil
}

// GetProductEscrow returns the amount currently held in escrow for a product.
func (s *SmartContract) GetProductEscrow(ctx contractapi.TransactionContextInterface, uid uint64) (uint64, error) {
	product, err := s.readProduct(ctx, uid)
	if err != nil {
		return 0, err
	}
	return product.Escrow, nil
}

// ListProducts returns every product in the ledger in uid order.
func (s *SmartContract) ListProducts(ctx contractapi.TransactionContextInterface) ([]*Product, error) {
	resultsIterator, err := ctx.GetStub().GetStateByRange("PRODUCT_", "PRODUCT_~")
	if err != nil {
		return nil, fmt.Errorf("failed to get products by range: %v", err)
	}
	defer resultsIterator.Close()

	var products []*Product
	for resultsIterator.HasNext() {
		queryResponse, err := resultsIterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed during results iteration: %v", err)
		}
		var product Product
		if err := json.Unmarshal(queryResponse.Value, &product); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product data: %v", err)
		}
		products = append(products, &product)
	}
	return products, nil
}

func (s *SmartContract) productCount(ctx contractapi.TransactionContextInterface) (uint64, error) {
	countBytes, err := ctx.GetStub().GetState(productCountKey)
	if err != nil {
		return 0, fmt.Errorf("failed to read product count: %v", err)
	}
	if countBytes == nil {
		return 0, nil
	}
	count, err := strconv.ParseUint(string(countBytes), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid product count '%s': %v", countBytes, err)
	}
	return count, nil
}

func (s *SmartContract) readProduct(ctx contractapi.TransactionContextInterface, uid uint64) (*Product, error) {
	productBytes, err := ctx.GetStub().GetState(productKey(uid))
	if err != nil {
		return nil, fmt.Errorf("failed to read product %d: %v", uid, err)
	}
	if productBytes == nil {
		return nil, fmt.Errorf("%w: product %d does not exist", ErrNotFound, uid)
	}
	var product Product
	if err := json.Unmarshal(productBytes, &product); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product data: %v", err)
	}
	return &product, nil
}

func (s *SmartContract) writeProduct(ctx contractapi.TransactionContextInterface, product *Product) error {
	productBytes, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product data: %v", err)
	}
	return ctx.GetStub().PutState(productKey(product.UID), productBytes)
}

func (s *SmartContract) stateError(product *Product, expected ProductState) error {
	return fmt.Errorf("%w: product %d is %s, expected %s", ErrInvalidState, product.UID, product.State, expected)
}
