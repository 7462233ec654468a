package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/animarr/internal/providers"
	"github.com/vmunix/animarr/internal/server"
)

func init() {
	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage provider registries",
	}

	listCmd := &cobra.Command{
		Use:   "list <registry>",
		Short: "List providers of a registry (hash, release, relocation)",
		Args:  cobra.ExactArgs(1),
		RunE:  runProvidersList,
	}

	updateCmd := &cobra.Command{
		Use:   "update <registry> <id>",
		Short: "Change a provider's enablement or priority",
		Args:  cobra.ExactArgs(2),
		RunE:  runProvidersUpdate,
	}
	updateCmd.Flags().Bool("enabled", true, "Enable or disable the provider")
	updateCmd.Flags().Int("priority", 0, "Priority slot (lower runs first)")

	providersCmd.AddCommand(listCmd)
	providersCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(providersCmd)
}

func registryInfos(components *server.Components, registry string) ([]providers.Info, error) {
	switch registry {
	case "hash":
		return components.HashReg.List(), nil
	case "release":
		return components.ReleaseReg.List(), nil
	case "relocation":
		return components.RelocReg.List(), nil
	default:
		return nil, fmt.Errorf("unknown registry %q (want hash, release or relocation)", registry)
	}
}

func runProvidersList(_ *cobra.Command, args []string) error {
	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	infos, err := registryInfos(components, args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(infos)
	}
	for _, info := range infos {
		state := "enabled"
		if !info.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s  %-20s priority=%d %s\n", info.ID, info.Name, info.Priority, state)
	}
	return nil
}

func runProvidersUpdate(cmd *cobra.Command, args []string) error {
	enabled, _ := cmd.Flags().GetBool("enabled")
	priority, _ := cmd.Flags().GetInt("priority")

	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	registry, id := args[0], args[1]
	var ok bool
	switch registry {
	case "hash":
		ok, err = components.HashReg.Update(id, enabled, priority)
	case "release":
		ok, err = components.ReleaseReg.Update(cmd.Context(), id, enabled, priority)
	case "relocation":
		ok, err = components.RelocReg.Update(cmd.Context(), id, enabled, priority)
	default:
		return fmt.Errorf("unknown registry %q (want hash, release or relocation)", registry)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unknown provider %s", id)
	}
	fmt.Printf("updated provider %s\n", id)
	return nil
}
