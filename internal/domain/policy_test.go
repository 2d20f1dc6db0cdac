package domain

import "testing"

func TestCan(t *testing.T) {
	admin := &Account{ID: "a-1", Role: RoleAdmin}
	owner := &Account{ID: "c-1", Role: RoleCustomer}
	stranger := &Account{ID: "c-2", Role: RoleCustomer}
	order := &Order{ID: "o-1", AccountID: "c-1"}

	tests := []struct {
		name     string
		account  *Account
		action   Action
		resource any
		want     bool
	}{
		{name: "admin manages catalog", account: admin, action: ActionManageCatalog, want: true},
		{name: "customer cannot manage catalog", account: owner, action: ActionManageCatalog, want: false},
		{name: "anonymous cannot manage catalog", account: nil, action: ActionManageCatalog, want: false},
		{name: "customer places order", account: owner, action: ActionPlaceOrder, want: true},
		{name: "owner reads order", account: owner, action: ActionReadOrder, resource: order, want: true},
		{name: "stranger cannot read order", account: stranger, action: ActionReadOrder, resource: order, want: false},
		{name: "admin reads any order", account: admin, action: ActionReadOrder, resource: order, want: true},
		{name: "read without resource", account: owner, action: ActionReadOrder, want: false},
		{name: "customer cannot transition", account: owner, action: ActionTransitionOrder, resource: order, want: false},
		{name: "admin transitions", account: admin, action: ActionTransitionOrder, resource: order, want: true},
		{name: "unknown action", account: admin, action: Action("catalog.delete"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Can(tt.account, tt.action, tt.resource); got != tt.want {
				t.Fatalf("Can() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsOwnerRequiresID(t *testing.T) {
	if IsOwner(&Account{}, &Order{}) {
		t.Fatal("empty ids must not match")
	}
}
