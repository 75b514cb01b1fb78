package main

import (
	"encoding/json"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

const (
	adminKey       = "ADMIN"
	tokenConfigKey = "TOKEN_CONFIG"
	rolePrefix     = "ROLE_"
)

// InitLedger initializes the contract: the caller becomes the singular admin
// and the settlement token binding is recorded. Callable exactly once.
func (s *SmartContract) InitLedger(ctx contractapi.TransactionContextInterface, tokenChaincode, tokenChannel, escrowAccount string) error {
	existing, err := ctx.GetStub().GetState(adminKey)
	if err != nil {
		return fmt.Errorf("failed to read admin record: %v", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: ledger is already initialized", ErrInvalidState)
	}

	caller, err := s.caller(ctx)
	if err != nil {
		return err
	}
	if err := ctx.GetStub().PutState(adminKey, []byte(caller)); err != nil {
		return fmt.Errorf("failed to store admin record: %v", err)
	}

	cfg := TokenConfig{
		Chaincode:     tokenChaincode,
		Channel:       tokenChannel,
		EscrowAccount: escrowAccount,
	}
	cfgBytes, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal token config: %v", err)
	}
	return ctx.GetStub().PutState(tokenConfigKey, cfgBytes)
}

// AddFarmer grants the farmer role. Admin only.
func (s *SmartContract) AddFarmer(ctx contractapi.TransactionContextInterface, principal string) error {
	return s.grantRole(ctx, principal, RoleFarmer)
}

// AddThirdParty grants the third-party role. Admin only.
func (s *SmartContract) AddThirdParty(ctx contractapi.TransactionContextInterface, principal string) error {
	return s.grantRole(ctx, principal, RoleThirdParty)
}

// AddDeliveryHub grants the delivery-hub role. Admin only.
func (s *SmartContract) AddDeliveryHub(ctx contractapi.TransactionContextInterface, principal string) error {
	return s.grantRole(ctx, principal, RoleDeliveryHub)
}

// AddCustomer grants the customer role. Admin only.
func (s *SmartContract) AddCustomer(ctx contractapi.TransactionContextInterface, principal string) error {
	return s.grantRole(ctx, principal, RoleCustomer)
}

// RevokeRole removes whatever role a principal holds. Admin only.
func (s *SmartContract) RevokeRole(ctx contractapi.TransactionContextInterface, principal string) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}
	grant, err := ctx.GetStub().GetState(rolePrefix + principal)
	if err != nil {
		return fmt.Errorf("failed to read role grant: %v", err)
	}
	if grant == nil {
		return fmt.Errorf("%w: principal %s holds no role", ErrNotFound, principal)
	}
	return ctx.GetStub().DelState(rolePrefix + principal)
}

// HasRole reports whether the principal holds the given role. Pure lookup.
func (s *SmartContract) HasRole(ctx contractapi.TransactionContextInterface, principal, role string) (bool, error) {
	if role == RoleAdmin {
		admin, err := ctx.GetStub().GetState(adminKey)
		if err != nil {
			return false, fmt.Errorf("failed to read admin record: %v", err)
		}
		return admin != nil && string(admin) == principal, nil
	}
	p, err := s.readParticipant(ctx, principal)
	if err != nil {
		return false, err
	}
	return p != nil && p.Role == role, nil
}

// GetParticipant returns the stored role grant for a principal.
func (s *SmartContract) GetParticipant(ctx contractapi.TransactionContextInterface, principal string) (*Participant, error) {
	p, err := s.readParticipant(ctx, principal)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: principal %s holds no role", ErrNotFound, principal)
	}
	return p, nil
}

// grantRole writes a role grant for principal. A re-grant overwrites the
// previous one.
func (s *SmartContract) grantRole(ctx contractapi.TransactionContextInterface, principal, role string) error {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	grant := Participant{
		Principal: principal,
		Role:      role,
		GrantedBy: admin,
	}
	grantBytes, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("failed to marshal role grant: %v", err)
	}
	return ctx.GetStub().PutState(rolePrefix+principal, grantBytes)
}

// requireAdmin resolves the caller and fails unless it is the admin.
func (s *SmartContract) requireAdmin(ctx contractapi.TransactionContextInterface) (string, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return "", err
	}
	admin, err := ctx.GetStub().GetState(adminKey)
	if err != nil {
		return "", fmt.Errorf("failed to read admin record: %v", err)
	}
	if admin == nil {
		return "", fmt.Errorf("%w: ledger is not initialized", ErrInvalidState)
	}
	if string(admin) != caller {
		return "", fmt.Errorf("%w: sender is not the admin", ErrUnauthorized)
	}
	return caller, nil
}

// requireRole is the single authorization gate consulted at the entry of
// every role-gated operation. It resolves the caller and fails with
// ErrUnauthorized unless the caller holds the required role.
func (s *SmartContract) requireRole(ctx contractapi.TransactionContextInterface, role string) (string, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return "", err
	}
	ok, err := s.HasRole(ctx, caller, role)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: sender is not a %s", ErrUnauthorized, role)
	}
	return caller, nil
}

func (s *SmartContract) readParticipant(ctx contractapi.TransactionContextInterface, principal string) (*Participant, error) {
	grant, err := ctx.GetStub().GetState(rolePrefix + principal)
	if err != nil {
		return nil, fmt.Errorf("failed to read role grant: %v", err)
	}
	if grant == nil {
		return nil, nil
	}
	var p Participant
	if err := json.Unmarshal(grant, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal role grant: %v", err)
	}
	return &p, nil
}

// caller returns the authenticated principal invoking the transaction.
func (s *SmartContract) caller(ctx contractapi.TransactionContextInterface) (string, error) {
	id, err := ctx.GetClientIdentity().GetID()
	if err != nil {
		return "", fmt.Errorf("failed to resolve caller identity: %v", err)
	}
	return id, nil
}
