package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/config"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/credstore"
)

var (
	loginRegistry      string
	loginUsername      string
	loginPasswordStdin bool

	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Store registry credentials in the system keychain",
		RunE:  doLogin,
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Remove stored registry credentials",
		RunE:  doLogout,
	}
)

func init() {
	loginCmd.Flags().StringVar(&loginRegistry, "registry", "", "registry host (defaults to the configured registry)")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "registry username (required)")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")
	_ = loginCmd.MarkFlagRequired("username")

	logoutCmd.Flags().StringVar(&loginRegistry, "registry", "", "registry host (defaults to the configured registry)")
}

func resolveRegistry() (string, error) {
	if loginRegistry != "" {
		return loginRegistry, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	if cfg.Registry == "" {
		return "", errors.New("no registry configured; pass --registry")
	}
	return cfg.Registry, nil
}

func doLogin(_ *cobra.Command, _ []string) error {
	registry, err := resolveRegistry()
	if err != nil {
		return err
	}

	if !loginPasswordStdin {
		return errors.New("pass --password-stdin and provide the password on stdin")
	}
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil && password == "" {
		return fmt.Errorf("read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")
	if password == "" {
		return errors.New("empty password")
	}

	store := &credstore.Store{Registry: registry}
	if err := store.Save(loginUsername, password); err != nil {
		return err
	}
	fmt.Printf("credentials stored for %s\n", registry)
	return nil
}

func doLogout(_ *cobra.Command, _ []string) error {
	registry, err := resolveRegistry()
	if err != nil {
		return err
	}
	store := &credstore.Store{Registry: registry}
	if err := store.Delete(); err != nil {
		return err
	}
	fmt.Printf("credentials removed for %s\n", registry)
	return nil
}
