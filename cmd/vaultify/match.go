package main

import (
	"context"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/franz/vaultify/internal/meta"
	"github.com/franz/vaultify/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var matchCmd = &cobra.Command{
	Use:   "match <fileName>",
	Short: "Show ranked metadata suggestions for a stored file",
	Long: `Show the ranked metadata candidates /fetch-metadata would return for a
stored file. Nothing is written.

Catalog results are scored against the file name, the embedded tags and
the stored record. The file name and tag fallbacks are always listed, so
suggestions appear even when every catalog is unreachable.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Bool("json", false, "print candidates as JSON")
	matchCmd.Flags().IntP("limit", "n", 0, "show at most n candidates (0 = all)")
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	fileName := args[0]
	var existing *store.TrackMetadata
	if song, ok, err := a.store.Song(ctx, fileName); err == nil && ok {
		existing = &song
	}

	matches, err := a.reconciler.FetchMatches(ctx, fileName, existing)
	if err != nil {
		return fmt.Errorf("failed to fetch matches: %w", err)
	}

	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"matches": matches})
	}

	if existing != nil {
		fmt.Printf("Stored: %s\n\n", describe(existing.Title, existing.Artist, existing.Album))
	}
	if len(matches) == 0 {
		fmt.Println("No candidates found")
		return nil
	}
	for i, c := range matches {
		fmt.Printf("%2d. %5.1f%%  %-14s %s\n", i+1, c.Confidence*100, sourceLabel(c), describe(c.Title, c.Artist, c.Album))
	}
	return nil
}

func sourceLabel(c meta.Candidate) string {
	if c.Provider != "" {
		return string(c.Source) + "/" + c.Provider
	}
	return string(c.Source)
}

// describe renders "Artist - Title (Album)" with blanks left out
func describe(title, artist, album string) string {
	s := title
	if s == "" {
		s = "?"
	}
	if artist != "" {
		s = artist + " - " + s
	}
	if album != "" {
		s += " (" + album + ")"
	}
	return s
}
