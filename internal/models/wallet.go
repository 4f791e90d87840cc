package models

// WalletConnection is a read-only view of the browser wallet state.
type WalletConnection struct {
	Connected bool   `json:"connected"`
	Wallet    string `json:"wallet,omitempty"`
	Address   string `json:"address,omitempty"`
	PublicKey string `json:"public_key,omitempty"`
}
