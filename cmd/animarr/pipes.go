package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vmunix/animarr/internal/library"
)

func init() {
	pipesCmd := &cobra.Command{
		Use:   "pipes",
		Short: "Manage relocation pipes",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List relocation pipes",
		RunE:  runPipesList,
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a relocation pipe",
		RunE:  runPipesAdd,
	}
	addCmd.Flags().String("name", "", "Pipe name (required)")
	addCmd.Flags().String("provider", "", "Relocation provider ID (required)")
	addCmd.Flags().String("config", "", "Provider configuration JSON")
	addCmd.Flags().Bool("default", false, "Mark as the default pipe")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("provider")

	defaultCmd := &cobra.Command{
		Use:   "set-default <id>",
		Short: "Mark a pipe as the default",
		Args:  cobra.ExactArgs(1),
		RunE:  runPipesSetDefault,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pipe",
		Args:  cobra.ExactArgs(1),
		RunE:  runPipesDelete,
	}

	pipesCmd.AddCommand(listCmd)
	pipesCmd.AddCommand(addCmd)
	pipesCmd.AddCommand(defaultCmd)
	pipesCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(pipesCmd)
}

func runPipesList(_ *cobra.Command, _ []string) error {
	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	pipes, err := components.Store.ListPipes()
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(pipes)
	}
	for _, p := range pipes {
		marker := " "
		if p.Default {
			marker = "*"
		}
		fmt.Printf("%s %d  %-20s provider=%s\n", marker, p.ID, p.Name, p.ProviderID)
	}
	return nil
}

func runPipesAdd(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	providerID, _ := cmd.Flags().GetString("provider")
	configJSON, _ := cmd.Flags().GetString("config")
	isDefault, _ := cmd.Flags().GetBool("default")

	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	if _, ok := components.RelocReg.Get(providerID); !ok {
		return fmt.Errorf("unknown relocation provider %s", providerID)
	}
	if configJSON != "" && !json.Valid([]byte(configJSON)) {
		return fmt.Errorf("config is not valid JSON")
	}

	pipe := &library.RelocationPipe{
		Name:       name,
		ProviderID: providerID,
		Config:     []byte(configJSON),
		Default:    isDefault,
	}
	if err := components.Store.AddPipe(pipe); err != nil {
		return err
	}
	fmt.Printf("added pipe %d (%s)\n", pipe.ID, pipe.Name)
	return nil
}

func runPipesSetDefault(_ *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid pipe id %q", args[0])
	}

	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	if err := components.Store.SetDefaultPipe(id); err != nil {
		return err
	}
	fmt.Printf("pipe %d is now the default\n", id)
	return nil
}

func runPipesDelete(_ *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid pipe id %q", args[0])
	}

	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	if err := components.Store.DeletePipe(id); err != nil {
		return err
	}
	fmt.Printf("deleted pipe %d\n", id)
	return nil
}
