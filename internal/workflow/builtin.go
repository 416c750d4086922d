package workflow

import (
	"github.com/castorix/go-workflow-harness/internal/session"
)

// Built-in workflow names
const (
	FarcasterComplete = "farcaster-complete"
	CLISmoke          = "cli-smoke"
)

// Builtin returns a built-in workflow by name
func Builtin(name string) (*Workflow, bool) {
	switch name {
	case FarcasterComplete:
		return farcasterComplete(), true
	case CLISmoke:
		return cliSmoke(), true
	}
	return nil, false
}

// BuiltinNames lists the embedded workflows
func BuiltinNames() []string {
	return []string{FarcasterComplete, CLISmoke}
}

// farcasterComplete is the end-to-end drive of the CLI under test: key
// generation, funding, FID registration, storage rental, signer
// operations and the query surface, in the order the artifacts flow.
func farcasterComplete() *Workflow {
	return &Workflow{
		Name:        FarcasterComplete,
		Description: "Full key, FID, storage and signer workflow against a local node",
		Version:     "1.0",
		NeedsNode:   true,
		Variables:   map[string]interface{}{},
		Stages: []Stage{
			{
				Name:        "fid-price",
				Kind:        "cli",
				Description: "Query the FID registration price banner",
				Policy:      PolicySoft,
				Parameters: map[string]interface{}{
					"args":           []string{"--path", "{{.workspace_root}}", "fid", "price"},
					"require_output": []string{"Base Registration Price"},
				},
			},
			{
				Name:        "key-generate",
				Kind:        "cli",
				Description: "Create the encrypted test wallet interactively",
				Policy:      PolicyHard,
				Parameters: map[string]interface{}{
					"args": []string{"--path", "{{.workspace_root}}", "key", "generate-encrypted"},
					"exchange": []session.Exchange{
						{Expect: "Enter", Send: "{{.wallet_name}}"},
						{Expect: "Do you want", Send: "y"},
						{Expect: "password", Send: "{{.key_password}}"},
						{Expect: "password", Send: "{{.key_password}}"},
					},
					"require_success_marker": true,
					"extract": map[string]ExtractSpec{
						"wallet_address": {Label: "Address:", Form: "address"},
					},
				},
			},
			{
				Name:        "key-list",
				Kind:        "cli",
				Description: "Verify the new wallet is listed",
				Policy:      PolicyHard,
				Parameters: map[string]interface{}{
					"args":           []string{"--path", "{{.workspace_root}}", "key", "list"},
					"require_output": []string{"{{.wallet_name}}"},
				},
			},
			{
				Name:        "fund-wallet",
				Kind:        "fund",
				Description: "Seed the wallet with test ETH from the node's funder account",
				Policy:      PolicyHard,
				Parameters: map[string]interface{}{
					"to": "{{.wallet_address}}",
				},
			},
			{
				Name:        "fid-register",
				Kind:        "cli",
				Description: "Register a FID with the funded wallet",
				Policy:      PolicyHard,
				Parameters: map[string]interface{}{
					"args": []string{"--path", "{{.workspace_root}}", "fid", "register", "--wallet", "{{.wallet_name}}", "--yes"},
					"exchange": []session.Exchange{
						{Expect: "password", Send: "{{.key_password}}"},
					},
					"require_success_marker": true,
					"extract": map[string]ExtractSpec{
						"fid": {Label: "FID", Form: "int"},
					},
				},
			},
			{
				Name:        "fid-list",
				Kind:        "cli",
				Description: "Confirm the registered FID shows up in the listing",
				Policy:      PolicySoft,
				Parameters: map[string]interface{}{
					"args": []string{"--path", "{{.workspace_root}}", "fid", "list"},
					"extract": map[string]ExtractSpec{
						"listed_fid": {Label: "FID:", Form: "int"},
					},
				},
			},
			{
				Name:        "storage-price",
				Kind:        "cli",
				Description: "Query the storage rental price for the FID",
				Policy:      PolicySoft,
				Parameters: map[string]interface{}{
					"args":           []string{"--path", "{{.workspace_root}}", "storage", "price", "{{.fid}}", "--units", "1"},
					"require_output": []string{"ETH"},
				},
			},
			{
				Name:        "storage-rent",
				Kind:        "cli",
				Description: "Rent a storage unit for the FID",
				Policy:      PolicyHard,
				Parameters: map[string]interface{}{
					"args":                   []string{"--path", "{{.workspace_root}}", "storage", "rent", "--fid", "{{.fid}}", "--wallet", "{{.wallet_name}}", "--units", "1", "--yes"},
					"require_success_marker": true,
				},
			},
			{
				Name:        "storage-usage",
				Kind:        "cli",
				Description: "Query storage usage for the FID",
				Policy:      PolicySoft,
				Parameters: map[string]interface{}{
					"args":           []string{"--path", "{{.workspace_root}}", "storage", "usage", "{{.fid}}"},
					"require_output": []string{"Storage"},
				},
			},
			{
				Name:        "signers-list",
				Kind:        "cli",
				Description: "List signers before registration",
				Policy:      PolicySoft,
				Parameters: map[string]interface{}{
					"args":               []string{"--path", "{{.workspace_root}}", "signers", "list"},
					"allow_soft_markers": true,
				},
			},
			{
				Name:        "signers-register",
				Kind:        "cli",
				Description: "Register an Ed25519 signer for the FID",
				Policy:      PolicySoft,
				Parameters: map[string]interface{}{
					"args": []string{"--path", "{{.workspace_root}}", "signers", "register", "{{.fid}}", "--wallet", "{{.wallet_name}}", "--yes"},
					"extract": map[string]ExtractSpec{
						"signer_key": {Label: "Key", Form: "hex64"},
					},
				},
			},
			{
				Name:        "signers-unregister",
				Kind:        "cli",
				Description: "Unregister the signer that was just added",
				Policy:      PolicySoft,
				Parameters: map[string]interface{}{
					"args": []string{"--path", "{{.workspace_root}}", "signers", "unregister", "{{.fid}}", "--key", "{{.signer_key}}", "--wallet", "{{.wallet_name}}", "--yes"},
				},
			},
			{
				Name:        "ens-domains",
				Kind:        "cli",
				Description: "Reverse-lookup ENS domains for the wallet address",
				Policy:      PolicySoft,
				Parameters: map[string]interface{}{
					"args":               []string{"--path", "{{.workspace_root}}", "ens", "domains", "{{.wallet_address}}"},
					"require_output":     []string{"domain"},
					"allow_soft_markers": true,
				},
			},
			{
				Name:        "key-delete",
				Kind:        "cli",
				Description: "Remove the test wallet from the workspace",
				Policy:      PolicySoft,
				Parameters: map[string]interface{}{
					"args":               []string{"--path", "{{.workspace_root}}", "key", "delete", "{{.wallet_name}}"},
					"allow_soft_markers": true,
				},
			},
		},
	}
}

// cliSmoke checks the CLI's help surface and configuration banner
// without a node; useful on machines that have the binary but no chain
// tooling.
func cliSmoke() *Workflow {
	helpStage := func(name string, args ...string) Stage {
		full := append([]string{"--path", "{{.workspace_root}}"}, args...)
		return Stage{
			Name:        name,
			Kind:        "cli",
			Description: "Help screen for " + name,
			Policy:      PolicySoft,
			Parameters: map[string]interface{}{
				"args":           full,
				"require_output": []string{"Commands"},
			},
		}
	}

	return &Workflow{
		Name:        CLISmoke,
		Description: "Help and configuration surface checks, no node required",
		Version:     "1.0",
		NeedsNode:   false,
		Variables:   map[string]interface{}{},
		Stages: []Stage{
			{
				Name:        "main-help",
				Kind:        "cli",
				Description: "Top-level help shows usage and command list",
				Policy:      PolicyHard,
				Parameters: map[string]interface{}{
					"args":           []string{"--help"},
					"require_output": []string{"Usage", "Commands"},
				},
			},
			helpStage("fid-help", "fid", "--help"),
			helpStage("storage-help", "storage", "--help"),
			helpStage("key-help", "key", "--help"),
			helpStage("ens-help", "ens", "--help"),
			helpStage("hub-help", "hub", "--help"),
			helpStage("signers-help", "signers", "--help"),
			helpStage("custody-help", "custody", "--help"),
			{
				Name:        "config-warning",
				Kind:        "cli",
				Description: "Placeholder configuration prints the warning banner",
				Policy:      PolicySoft,
				Parameters: map[string]interface{}{
					"args":               []string{"--path", "{{.workspace_root}}", "fid", "price"},
					"require_output":     []string{"Configuration Warning"},
					"allow_nonzero_exit": true,
					"allow_soft_markers": true,
				},
			},
		},
	}
}
