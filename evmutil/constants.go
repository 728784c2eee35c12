package evmutil

// PERMIT2Address is Uniswap's Permit2 contract. It is deployed at the same
// address on every EVM chain via CREATE2, so this is a single constant
// rather than a per-network config entry.
const PERMIT2Address = "0x000000000022D473030F116dDEE9F6B43aC78BA3"

// UptoProxyAddress is the upto-scheme proxy that wraps Permit2's
// PermitWitnessTransferFrom and enforces settled <= permitted.amount.
const UptoProxyAddress = "0x4020633461b2895a48930Ff97eE8fCdE8E520002"

// Permit2DeadlineBuffer is not applied by the verifier (the spec's check 3
// is a strict now < deadline comparison); it is kept here for symmetry with
// the client builder's validAfter skew and documents the accepted clock
// drift budget between payer and facilitator.
const Permit2DeadlineBuffer = 60

// Chain ids for the two supported networks.
const (
	ChainIDBase        = 8453
	ChainIDBaseSepolia = 84532
)

// AssetInfo describes a token's on-chain identity for EIP-712 domain
// construction and default-asset lookup.
type AssetInfo struct {
	Address  string
	Name     string
	Version  string
	Decimals int
}

// NetworkConfig binds a CAIP-2 network to a chain id and its default asset.
type NetworkConfig struct {
	ChainID      int64
	DefaultAsset AssetInfo
}

// NetworkConfigs maps CAIP-2 network identifiers to their configuration.
// Only eip155:8453 (Base) and eip155:84532 (Base Sepolia) are supported, per
// the base spec's supported-networks list.
var NetworkConfigs = map[string]NetworkConfig{
	"eip155:8453": {
		ChainID: ChainIDBase,
		DefaultAsset: AssetInfo{
			Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Name:     "USD Coin",
			Version:  "2",
			Decimals: 6,
		},
	},
	"eip155:84532": {
		ChainID: ChainIDBaseSepolia,
		DefaultAsset: AssetInfo{
			Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			Name:     "USDC",
			Version:  "2",
			Decimals: 6,
		},
	},
}

// GetNetworkConfig looks up the configuration for a CAIP-2 network.
func GetNetworkConfig(network string) (NetworkConfig, bool) {
	cfg, ok := NetworkConfigs[network]
	return cfg, ok
}

// Permit2WitnessTypes is the EIP-712 type map for the nested structs of
// PermitWitnessTransferFrom: TokenPermissions and Witness.
var Permit2WitnessTypes = map[string][]TypedDataField{
	"TokenPermissions": {
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
	},
	"Witness": {
		{Name: "to", Type: "address"},
		{Name: "validAfter", Type: "uint256"},
		{Name: "extra", Type: "bytes"},
	},
}

// GetPermit2EIP712Types returns the full EIP-712 type map for
// PermitWitnessTransferFrom, including the nested TokenPermissions and
// Witness structs and the domain type.
func GetPermit2EIP712Types() map[string][]TypedDataField {
	types := map[string][]TypedDataField{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"PermitWitnessTransferFrom": {
			{Name: "permitted", Type: "TokenPermissions"},
			{Name: "spender", Type: "address"},
			{Name: "nonce", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
			{Name: "witness", Type: "Witness"},
		},
	}
	for name, fields := range Permit2WitnessTypes {
		types[name] = fields
	}
	return types
}

// ERC20AllowanceABI is the ABI fragment for ERC20.allowance(owner, spender).
const ERC20AllowanceABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// ERC20BalanceOfABI is the ABI fragment for ERC20.balanceOf(account).
const ERC20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// ERC20ApproveABI is the ABI fragment for ERC20.approve(spender, amount).
const ERC20ApproveABI = `[{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// ApproveSelector is the 4-byte selector of approve(address,uint256).
const ApproveSelector = "0x095ea7b3"

// UptoProxySettleABI is the ABI fragment for the upto proxy's
// settle(permit, amount, owner, witness, signature) method, where permit is
// (TokenPermissions permitted, uint256 nonce, uint256 deadline) and witness
// is (address to, uint256 validAfter, bytes extra).
const UptoProxySettleABI = `[{
	"inputs": [
		{
			"components": [
				{
					"components": [
						{"name": "token", "type": "address"},
						{"name": "amount", "type": "uint256"}
					],
					"name": "permitted",
					"type": "tuple"
				},
				{"name": "nonce", "type": "uint256"},
				{"name": "deadline", "type": "uint256"}
			],
			"name": "permit",
			"type": "tuple"
		},
		{"name": "amount", "type": "uint256"},
		{"name": "owner", "type": "address"},
		{
			"components": [
				{"name": "to", "type": "address"},
				{"name": "validAfter", "type": "uint256"},
				{"name": "extra", "type": "bytes"}
			],
			"name": "witness",
			"type": "tuple"
		},
		{"name": "signature", "type": "bytes"}
	],
	"name": "settle",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

// FunctionSettle is the upto proxy's settlement method name.
const FunctionSettle = "settle"

// TxStatusSuccess is the receipt status value for a successful transaction.
const TxStatusSuccess = 1
