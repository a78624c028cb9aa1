package vault

import (
	"context"
	"fmt"

	"fwbot-go/internal/config"
)

// NewVaultFromConfig creates a Vault based on the vault config type.
// Type "none" returns a nil Vault and no error.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig, accessKey, secretKey string) (Vault, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryVault(), nil
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(cfg.FSVaultRoot)
	case "s3":
		return NewS3Vault(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: accessKey,
			SecretKey: secretKey,
		})
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
