package assets

import _ "embed"

//go:embed wallet.html
var WalletHTML []byte
