package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show library and pipeline status",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)
}

func countRows(db *sql.DB, table string) (int64, error) {
	var n int64
	err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
	return n, err
}

func runStatus(_ *cobra.Command, _ []string) error {
	components, db, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	counts := map[string]int64{}
	for _, table := range []string{"videos", "video_locations", "releases", "relocation_pipes"} {
		n, err := countRows(db, table)
		if err != nil {
			return err
		}
		counts[table] = n
	}

	folders, err := components.Store.ListFolders()
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"counts":     counts,
			"folders":    folders,
			"hash":       components.HashReg.List(),
			"release":    components.ReleaseReg.List(),
			"relocation": components.RelocReg.List(),
		})
	}

	fmt.Printf("videos:   %d\n", counts["videos"])
	fmt.Printf("files:    %d\n", counts["video_locations"])
	fmt.Printf("releases: %d\n", counts["releases"])
	fmt.Printf("pipes:    %d\n", counts["relocation_pipes"])
	fmt.Printf("folders:  %d\n", len(folders))
	for _, f := range folders {
		fmt.Printf("  %d  %-20s %-12s %s\n", f.ID, f.Name, f.DropType, f.Path)
	}
	for _, registry := range []string{"hash", "release", "relocation"} {
		infos, _ := registryInfos(components, registry)
		enabled := 0
		for _, info := range infos {
			if info.Enabled {
				enabled++
			}
		}
		fmt.Printf("%s providers: %d enabled of %d\n", registry, enabled, len(infos))
	}
	return nil
}
