package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var bits int
	cmd := &cobra.Command{
		Use:   "keygen <private.pem> <public.pem>",
		Short: "Generate an RSA key pair for signing rows",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if bits < 2048 {
				return fmt.Errorf("key size %d is below 2048 bits", bits)
			}
			key, err := rsa.GenerateKey(rand.Reader, bits)
			if err != nil {
				return err
			}
			pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
			if err != nil {
				return err
			}
			privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
			pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})
			if err := os.WriteFile(args[0], privPEM, 0o600); err != nil {
				return err
			}
			return os.WriteFile(args[1], pubPEM, 0o644)
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 2048, "RSA modulus size")
	return cmd
}
