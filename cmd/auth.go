package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geoloqi/geoloqi-go/geoloqi"
)

var (
	redirectURI string
	authParams  []string
)

// authorizeURLCmd prints the URL a user visits to grant access
var authorizeURLCmd = &cobra.Command{
	Use:   "authorize-url",
	Short: "Print the OAuth2 authorization URL",
	Long: `Print the URL a user visits to authorize this application. The code the
user is redirected back with can be traded for a credential with "exchange".`,
	Args: cobra.NoArgs,
	RunE: runAuthorizeURL,
}

// exchangeCmd trades an authorization code for a credential
var exchangeCmd = &cobra.Command{
	Use:   "exchange <code>",
	Short: "Exchange an authorization code for an access token",
	Args:  cobra.ExactArgs(1),
	RunE:  runExchange,
}

// refreshCmd renews the stored credential
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Renew the stored access token with its refresh token",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

// appTokenCmd prints the application access token
var appTokenCmd = &cobra.Command{
	Use:   "app-token",
	Short: "Fetch an application access token with the client credentials grant",
	Args:  cobra.NoArgs,
	RunE:  runAppToken,
}

func init() {
	authorizeURLCmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "redirect URI (default is client.redirect_uri)")
	authorizeURLCmd.Flags().StringArrayVarP(&authParams, "param", "p", nil, "extra query parameter as key=value, repeatable")

	exchangeCmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "redirect URI used for authorization (default is client.redirect_uri)")
}

func runAuthorizeURL(cmd *cobra.Command, args []string) error {
	extra, err := parseParams(authParams)
	if err != nil {
		return err
	}

	url, err := session.AuthorizeURL(redirectURI, extra...)
	if err != nil {
		return err
	}

	fmt.Println(url)
	return nil
}

func runExchange(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cred, err := session.GetAuth(ctx, args[0], redirectURI)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	logger.Info().
		Bool("has_refresh_token", cred.RefreshToken != "").
		Msg("Authorization complete")

	persistAuth()
	return printJSON(cred.Map())
}

func runRefresh(cmd *cobra.Command, args []string) error {
	if session.Auth().RefreshToken == "" {
		return fmt.Errorf("no refresh token stored, run exchange first")
	}

	ctx := context.Background()
	cred, err := session.RenewAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to renew access token: %w", err)
	}

	persistAuth()
	return printJSON(cred.Map())
}

func runAppToken(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	token, err := session.ApplicationAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch application token: %w", err)
	}

	fmt.Println(token)
	return nil
}

// parseParams turns key=value flags into ordered parameters
func parseParams(raw []string) ([]geoloqi.Param, error) {
	params := make([]geoloqi.Param, 0, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", kv)
		}
		params = append(params, geoloqi.Param{Key: key, Value: value})
	}
	return params, nil
}
