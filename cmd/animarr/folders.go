package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/animarr/internal/library"
)

func init() {
	foldersCmd := &cobra.Command{
		Use:   "folders",
		Short: "Manage managed folders",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List managed folders",
		RunE:  runFoldersList,
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a managed folder",
		RunE:  runFoldersAdd,
	}
	addCmd.Flags().String("name", "", "Folder display name (required)")
	addCmd.Flags().String("path", "", "Absolute root path (required)")
	addCmd.Flags().String("drop-type", "none", "Drop classification: none, source, destination, both, excluded")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("path")

	foldersCmd.AddCommand(listCmd)
	foldersCmd.AddCommand(addCmd)
	rootCmd.AddCommand(foldersCmd)
}

func runFoldersList(_ *cobra.Command, _ []string) error {
	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	folders, err := components.Store.ListFolders()
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(folders)
	}
	for _, f := range folders {
		fmt.Printf("%d  %-20s %-12s %s\n", f.ID, f.Name, f.DropType, f.Path)
	}
	return nil
}

func runFoldersAdd(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	path, _ := cmd.Flags().GetString("path")
	dropType, _ := cmd.Flags().GetString("drop-type")

	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	f := &library.ManagedFolder{Name: name, Path: path, DropType: library.DropType(dropType)}
	if err := components.Store.AddFolder(f); err != nil {
		return err
	}
	fmt.Printf("added folder %d (%s)\n", f.ID, f.Name)
	return nil
}
