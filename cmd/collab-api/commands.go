package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/auth"
	"github.com/MarcoPoloResearchLab/collab/internal/config"
	"github.com/MarcoPoloResearchLab/collab/internal/logging"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// newTokenCommand mints a session token for local development and scripts.
func newTokenCommand() *cobra.Command {
	var (
		memberID string
		name     string
		email    string
		role     string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token for a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
				SigningSecret: []byte(appConfig.SessionSigningSecret),
				Issuer:        appConfig.SessionIssuer,
				TTL:           appConfig.SessionTTL,
			})
			if err != nil {
				return err
			}
			claims := auth.SessionClaims{
				MemberID:    memberID,
				MemberName:  name,
				MemberEmail: email,
			}
			if strings.TrimSpace(role) != "" {
				parsed, err := team.ParseRole(role)
				if err != nil {
					return err
				}
				claims.MemberRoles = []string{string(parsed)}
			}
			token, expiresAt, err := issuer.Issue(claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&memberID, "member-id", "", "Member id carried by the token")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Member email")
	cmd.Flags().StringVar(&role, "role", "", "Member role (admin, manager, agent, viewer)")
	_ = cmd.MarkFlagRequired("member-id")
	return cmd
}

// demoRoster is the starter team inserted by the seed command.
func demoRoster(now time.Time) []team.Member {
	return []team.Member{
		{ID: "1", Name: "Sarah Johnson", Email: "sarah@company.com", Role: team.RoleAdmin, Status: team.StatusOnline, LastSeen: now},
		{ID: "2", Name: "Mike Chen", Email: "mike@company.com", Role: team.RoleAgent, Status: team.StatusAway, LastSeen: now.Add(-15 * time.Minute)},
		{ID: "3", Name: "Emma Davis", Email: "emma@company.com", Role: team.RoleManager, Status: team.StatusBusy, LastSeen: now.Add(-5 * time.Minute)},
		{ID: "4", Name: "Alex Rodriguez", Email: "alex@company.com", Role: team.RoleAgent, Status: team.StatusOffline, LastSeen: now.Add(-2 * time.Hour)},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo team into the roster table",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.NewLogger(viper.GetString("log.level"))
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			db, closeDB, err := openDatabase(logger)
			if err != nil {
				return err
			}
			defer closeDB()

			repository, err := team.NewRepository(team.RepositoryConfig{Database: db, Logger: logger})
			if err != nil {
				return err
			}
			inserted, err := repository.Seed(cmd.Context(), demoRoster(time.Now().UTC()))
			if err != nil {
				return err
			}
			logger.Info("roster seeded", zap.Int("inserted", inserted))
			return nil
		},
	}
}
