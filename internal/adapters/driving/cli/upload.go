package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Place documents into the landing area",
}

var uploadPolicyCmd = &cobra.Command{
	Use:   "policy [category] [file]",
	Short: "Upload a master policy",
	Long: `Copies a master policy into policies/<category>/<timestamp>/ in the
landing area, where the watcher picks it up.`,
	Args: cobra.ExactArgs(2),
	RunE: runUploadPolicy,
}

var uploadClaimCmd = &cobra.Command{
	Use:   "claim [client-id] [type] [file]",
	Short: "Upload a claim document",
	Long: `Copies a claim document into claims/<client-id>/<type>/ in the landing
area, where the watcher picks it up.`,
	Args: cobra.ExactArgs(3),
	RunE: runUploadClaim,
}

func init() {
	uploadCmd.AddCommand(uploadPolicyCmd)
	uploadCmd.AddCommand(uploadClaimCmd)
	rootCmd.AddCommand(uploadCmd)
}

func runUploadPolicy(cmd *cobra.Command, args []string) error {
	if uploadService == nil {
		return errors.New("upload service not configured")
	}
	category, path := args[0], args[1]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	dest, err := uploadService.UploadPolicy(cmd.Context(), category, filepath.Base(path), f)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	cmd.Printf("Uploaded to %s\n", dest)
	return nil
}

func runUploadClaim(cmd *cobra.Command, args []string) error {
	if uploadService == nil {
		return errors.New("upload service not configured")
	}
	clientID, submissionType, path := args[0], args[1], args[2]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	dest, err := uploadService.UploadClaim(cmd.Context(), clientID, submissionType, filepath.Base(path), f)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	cmd.Printf("Uploaded to %s\n", dest)
	return nil
}
