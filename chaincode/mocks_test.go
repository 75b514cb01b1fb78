package main

import (
	"crypto/x509"
	"fmt"
	"testing"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/require"
)

// Test principals. GetID returns opaque identity strings in production; any
// unique string works for the contract.
const (
	adminID      = "x509::CN=admin"
	farmerID     = "x509::CN=farmer1"
	thirdPartyID = "x509::CN=thirdparty1"
	hubID        = "x509::CN=deliveryhub1"
	customerID   = "x509::CN=customer1"
	escrowID     = "supplychain"
)

// mockIdentity satisfies cid.ClientIdentity for a fixed principal.
type mockIdentity struct {
	id string
}

func (m *mockIdentity) GetID() (string, error)                         { return m.id, nil }
func (m *mockIdentity) GetMSPID() (string, error)                      { return "Org1MSP", nil }
func (m *mockIdentity) GetX509Certificate() (*x509.Certificate, error) { return nil, nil }
func (m *mockIdentity) GetAttributeValue(string) (string, bool, error) { return "", false, nil }
func (m *mockIdentity) AssertAttributeValue(string, string) error      { return nil }

var _ cid.ClientIdentity = (*mockIdentity)(nil)

// mockContext pairs a stub with a caller identity.
type mockContext struct {
	stub shim.ChaincodeStubInterface
	id   *mockIdentity
}

func (c *mockContext) GetStub() shim.ChaincodeStubInterface  { return c.stub }
func (c *mockContext) GetClientIdentity() cid.ClientIdentity { return c.id }

var _ contractapi.TransactionContextInterface = (*mockContext)(nil)

// memToken is an in-memory settlement token with allowance semantics,
// standing in for the external token chaincode.
type memToken struct {
	escrowAccount string
	balances      map[string]uint64
	allowances    map[string]uint64 // owner -> amount approved for the contract
}

func newMemToken(escrowAccount string) *memToken {
	return &memToken{
		escrowAccount: escrowAccount,
		balances:      map[string]uint64{},
		allowances:    map[string]uint64{},
	}
}

func (t *memToken) mint(account string, amount uint64)  { t.balances[account] += amount }
func (t *memToken) approve(owner string, amount uint64) { t.allowances[owner] = amount }
func (t *memToken) balanceOf(account string) uint64     { return t.balances[account] }

func (t *memToken) TransferFrom(from, to string, amount uint64) error {
	if t.allowances[from] < amount {
		return fmt.Errorf("allowance of %s is below %d", from, amount)
	}
	if t.balances[from] < amount {
		return fmt.Errorf("insufficient account balance")
	}
	t.allowances[from] -= amount
	t.balances[from] -= amount
	t.balances[to] += amount
	return nil
}

func (t *memToken) Transfer(to string, amount uint64) error {
	if t.balances[t.escrowAccount] < amount {
		return fmt.Errorf("insufficient account balance")
	}
	t.balances[t.escrowAccount] -= amount
	t.balances[to] += amount
	return nil
}

func (t *memToken) BalanceOf(account string) (uint64, error) {
	return t.balances[account], nil
}

var _ TokenLedger = (*memToken)(nil)

// fixture wires a SmartContract to a MockStub and an in-memory token.
type fixture struct {
	t     *testing.T
	stub  *shimtest.MockStub
	sc    *SmartContract
	token *memToken
	txSeq int
}

func newFixture(t *testing.T) *fixture {
	token := newMemToken(escrowID)
	return &fixture{
		t:     t,
		stub:  shimtest.NewMockStub("supplychain", nil),
		sc:    &SmartContract{token: token},
		token: token,
	}
}

func (f *fixture) ctx(principal string) contractapi.TransactionContextInterface {
	return &mockContext{stub: f.stub, id: &mockIdentity{id: principal}}
}

// invoke runs fn as principal inside a mock transaction so state writes are
// permitted.
func (f *fixture) invoke(principal string, fn func(contractapi.TransactionContextInterface) error) error {
	f.txSeq++
	txID := fmt.Sprintf("tx%04d", f.txSeq)
	f.stub.MockTransactionStart(txID)
	defer f.stub.MockTransactionEnd(txID)
	return fn(f.ctx(principal))
}

// bootstrap initializes the ledger, grants one principal per role and funds
// the buyers, mirroring the deployment sequence.
func (f *fixture) bootstrap() {
	require.NoError(f.t, f.invoke(adminID, func(ctx contractapi.TransactionContextInterface) error {
		return f.sc.InitLedger(ctx, "agritoken", "channel1", escrowID)
	}))
	require.NoError(f.t, f.invoke(adminID, func(ctx contractapi.TransactionContextInterface) error {
		return f.sc.AddFarmer(ctx, farmerID)
	}))
	require.NoError(f.t, f.invoke(adminID, func(ctx contractapi.TransactionContextInterface) error {
		return f.sc.AddThirdParty(ctx, thirdPartyID)
	}))
	require.NoError(f.t, f.invoke(adminID, func(ctx contractapi.TransactionContextInterface) error {
		return f.sc.AddDeliveryHub(ctx, hubID)
	}))
	require.NoError(f.t, f.invoke(adminID, func(ctx contractapi.TransactionContextInterface) error {
		return f.sc.AddCustomer(ctx, customerID)
	}))
	f.token.mint(thirdPartyID, 1000)
	f.token.mint(customerID, 1000)
}

// harvest creates the strawberry product used throughout the tests and
// returns its uid.
func (f *fixture) harvest(code string) uint64 {
	var uid uint64
	require.NoError(f.t, f.invoke(farmerID, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		uid, err = f.sc.HarvestProduct(ctx, "Dâu tây", code, 30, "hoa qua",
			[]string{"http/farmer/image1", "http/farmer/img2"},
			"strawberries from Da Lat", 50, "43242.43", "23432.432", "43.22", 78)
		return err
	}))
	return uid
}
