// Command dimectl is a small workbench for DIME artifacts: it generates
// key files with matching signets, inspects signet files, and prints
// fingerprints.
//
//	dimectl keygen <org|user|ssr> <id> <keys-file> <signet-file>
//	dimectl inspect <signet-file>
//	dimectl fingerprint <signet-file>
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/darkmail/dime-go/keys"
	"github.com/darkmail/dime-go/signet"
)

// Config holds the I/O configuration for the dimectl commands.
type Config struct {
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultConfig returns a Config using standard I/O.
func DefaultConfig() *Config {
	return &Config{Stdout: os.Stdout, Stderr: os.Stderr}
}

func run(args []string, cfg *Config) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: dimectl <keygen|inspect|fingerprint> [args]")
	}

	switch args[1] {
	case "keygen":
		return cmdKeygen(args[2:], cfg)
	case "inspect":
		return cmdInspect(args[2:], cfg)
	case "fingerprint":
		return cmdFingerprint(args[2:], cfg)
	}
	return fmt.Errorf("unknown command %q", args[1])
}

func cmdKeygen(args []string, cfg *Config) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: dimectl keygen <org|user|ssr> <id> <keys-file> <signet-file>")
	}
	kind, id, keysPath, signetPath := args[0], args[1], args[2], args[3]

	var typ signet.Type
	switch kind {
	case "org":
		typ = signet.TypeOrg
	case "user", "ssr":
		typ = signet.TypeSSR
	default:
		return fmt.Errorf("unknown signet type %q", kind)
	}

	s, err := signet.NewWithKeys(typ, keysPath)
	if err != nil {
		return fmt.Errorf("generate keys: %w", err)
	}
	pair, err := keys.Load(keysPath)
	if err != nil {
		return fmt.Errorf("reload keys: %w", err)
	}
	defer pair.Destroy()

	switch kind {
	case "org":
		if err := s.SignCrypto(pair.Signing); err != nil {
			return err
		}
		if err := s.SignFull(pair.Signing); err != nil {
			return err
		}
		if err := s.SetID(id); err != nil {
			return err
		}
		if err := s.SignID(pair.Signing); err != nil {
			return err
		}
	default:
		// A fresh user identity starts life as a self-signed SSR; the
		// organization upgrades it with its own counter-signatures.
		if err := s.SignSSR(pair.Signing); err != nil {
			return err
		}
	}

	if err := s.FileCreate(signetPath); err != nil {
		return err
	}
	fmt.Fprintf(cfg.Stdout, "wrote %s and %s\n", keysPath, signetPath)
	return nil
}

func cmdInspect(args []string, cfg *Config) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dimectl inspect <signet-file>")
	}
	s, err := signet.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cfg.Stdout, "state: %s\n", s.ValidateStructure())
	return s.Dump(cfg.Stdout)
}

func cmdFingerprint(args []string, cfg *Config) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dimectl fingerprint <signet-file>")
	}
	s, err := signet.Load(args[0])
	if err != nil {
		return err
	}

	type fp struct {
		name string
		get  func() (string, error)
	}
	for _, f := range []fp{
		{"ssr", s.FingerprintSSR},
		{"crypto", s.FingerprintCrypto},
		{"full", s.FingerprintFull},
		{"id", s.FingerprintID},
	} {
		value, err := f.get()
		if err != nil {
			continue
		}
		fmt.Fprintf(cfg.Stdout, "%-6s %s\n", f.name, value)
	}
	return nil
}

func main() {
	if err := run(os.Args, DefaultConfig()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
