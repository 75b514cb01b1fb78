package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// TokenLedger is the boundary with the fungible settlement token. The
// contract only pulls escrow, releases escrow and reads balances; allowance
// management stays between the token and its holders.
type TokenLedger interface {
	TransferFrom(from, to string, amount uint64) error
	Transfer(to string, amount uint64) error
	BalanceOf(account string) (uint64, error)
}

// tokenChaincode drives an ERC-20 style token chaincode through
// InvokeChaincode, using the binding recorded at InitLedger.
type tokenChaincode struct {
	stub shim.ChaincodeStubInterface
	cfg  TokenConfig
}

func (t *tokenChaincode) invoke(args ...string) (string, error) {
	raw := make([][]byte, len(args))
	for i, a := range args {
		raw[i] = []byte(a)
	}
	resp := t.stub.InvokeChaincode(t.cfg.Chaincode, raw, t.cfg.Channel)
	if resp.Status != shim.OK {
		return "", fmt.Errorf("token %s failed: %s", args[0], resp.Message)
	}
	return string(resp.Payload), nil
}

func (t *tokenChaincode) TransferFrom(from, to string, amount uint64) error {
	_, err := t.invoke("TransferFrom", from, to, strconv.FormatUint(amount, 10))
	return err
}

func (t *tokenChaincode) Transfer(to string, amount uint64) error {
	_, err := t.invoke("Transfer", to, strconv.FormatUint(amount, 10))
	return err
}

func (t *tokenChaincode) BalanceOf(account string) (uint64, error) {
	payload, err := t.invoke("BalanceOf", account)
	if err != nil {
		return 0, err
	}
	balance, err := strconv.ParseUint(payload, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid balance payload '%s': %v", payload, err)
	}
	return balance, nil
}

// settlement returns the token ledger and its recorded binding. The injected
// ledger, when present, takes precedence over the chaincode adapter.
func (s *SmartContract) settlement(ctx contractapi.TransactionContextInterface) (TokenLedger, *TokenConfig, error) {
	cfgBytes, err := ctx.GetStub().GetState(tokenConfigKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read token config: %v", err)
	}
	if cfgBytes == nil {
		return nil, nil, fmt.Errorf("%w: ledger is not initialized", ErrInvalidState)
	}
	var cfg TokenConfig
	if err := json.Unmarshal(cfgBytes, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal token config: %v", err)
	}
	if s.token != nil {
		return s.token, &cfg, nil
	}
	return &tokenChaincode{stub: ctx.GetStub(), cfg: cfg}, &cfg, nil
}
