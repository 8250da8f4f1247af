package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/authz"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/mutation"
	"github.com/rileyhilliard/proxmon/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var settingsShowSecrets bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "View and change system settings",
	Long: `View and change the server's system settings: notification channels,
alert thresholds, the Proxmox API token and single sign-on.

Anyone signed in can view the settings. Changing them requires an admin.`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the system settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}
		s, err := a.client.Settings(cmd.Context())
		if err != nil {
			return err
		}
		shown := *s
		if !settingsShowSecrets {
			shown = maskSecrets(shown)
		}
		return emit(cmd, shown, func(w io.Writer) { printSettings(w, shown) })
	},
}

// settingsFlags are the general settings 'settings update' can change.
type settingsFlags struct {
	telegramEnabled  bool
	telegramBotToken string
	telegramAPIID    string
	telegramAPIHash  string
	telegramChatID   string

	discordEnabled   bool
	discordBotToken  string
	discordGuildID   string
	discordChannelID string

	cpuThreshold  int
	ramThreshold  int
	diskThreshold int
}

var settingsUpdate settingsFlags

var settingsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change notification channels and alert thresholds",
	Long: `Change notification channels and alert thresholds. Only the flags you
pass are changed; everything else keeps its current value.

Examples:
  proxmon settings update --cpu-threshold 80 --disk-threshold 90
  proxmon settings update --telegram-enabled --telegram-bot-token 123:abc --telegram-chat-id 42
  proxmon settings update --discord-enabled=false`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionEditSettings); err != nil {
			return err
		}
		if err := validateThresholds(cmd.Flags()); err != nil {
			return err
		}
		s, err := updateSettings(cmd.Context(), a.client, func(s api.Settings) api.Settings {
			return applySettingsFlags(cmd.Flags(), settingsUpdate, s)
		}, a.client.UpdateSettings)
		if err != nil {
			return err
		}
		masked := maskSecrets(s)
		return emit(cmd, masked, func(w io.Writer) {
			fmt.Fprintf(w, "%s Settings saved\n\n", ui.SuccessStyle.Render(ui.SymbolSuccess))
			printSettings(w, masked)
		})
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset notification settings and thresholds to defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionEditSettings); err != nil {
			return err
		}
		ok, err := confirmAction("Reset system settings?", "Notification channels and thresholds go back to their defaults.")
		if err != nil {
			return err
		}
		if !ok {
			return cancelled(cmd)
		}
		msg, err := a.client.ResetSettings(cmd.Context())
		if err != nil {
			return err
		}
		return success(cmd, fallback(msg, "Settings reset"))
	},
}

// Proxmox API token

type proxmoxFlags struct {
	host        string
	tokenID     string
	tokenSecret string
}

var proxmoxOpts proxmoxFlags

var settingsProxmoxCmd = &cobra.Command{
	Use:   "proxmox",
	Short: "Proxmox API connection",
}

var settingsProxmoxUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Set the Proxmox host and API token",
	Long: `Set the Proxmox host and API token the server polls.

The token secret is prompted for when not given.

Examples:
  proxmon settings proxmox update --host https://pve.lan:8006 --token-id monitor@pve!proxmon`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionEditSettings); err != nil {
			return err
		}
		p, err := proxmoxFromFlags(true)
		if err != nil {
			return err
		}
		if _, err := a.client.UpdateProxmox(cmd.Context(), p); err != nil {
			return err
		}
		return success(cmd, "Proxmox connection saved for "+p.Host)
	},
}

var settingsProxmoxResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the Proxmox connection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionEditSettings); err != nil {
			return err
		}
		ok, err := confirmAction("Remove the Proxmox connection?", "The server stops collecting metrics until a new token is set.")
		if err != nil {
			return err
		}
		if !ok {
			return cancelled(cmd)
		}
		msg, err := a.client.ResetProxmox(cmd.Context())
		if err != nil {
			return err
		}
		return success(cmd, fallback(msg, "Proxmox connection removed"))
	},
}

var settingsProxmoxTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Test a Proxmox connection",
	Long: `Ask the server to test a Proxmox connection. Flags that are not given
are taken from the saved settings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionEditSettings); err != nil {
			return err
		}
		saved, err := a.client.Settings(cmd.Context())
		if err != nil {
			return err
		}
		p := api.ProxmoxSettings{
			Host:        pick(proxmoxOpts.host, saved.ProxmoxHost),
			TokenID:     pick(proxmoxOpts.tokenID, saved.ProxmoxTokenID),
			TokenSecret: pick(proxmoxOpts.tokenSecret, saved.ProxmoxTokenSecret),
		}
		msg, err := a.client.TestProxmox(cmd.Context(), p)
		if err != nil {
			return err
		}
		return success(cmd, fallback(msg, "Proxmox connection works"))
	},
}

// Single sign-on

type ssoFlags struct {
	name         string
	clientID     string
	clientSecret string
	discoveryURL string
	redirectURI  string
	scopes       string
	responseType string
}

var ssoOpts ssoFlags

var settingsSSOCmd = &cobra.Command{
	Use:   "sso",
	Short: "Single sign-on (OpenID Connect) provider",
}

var settingsSSOUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Configure the OpenID Connect provider",
	Long: `Configure the OpenID Connect provider. Flags that are not given keep
their saved value.

Examples:
  proxmon settings sso update --name Authentik --client-id proxmon \
    --discovery-url https://auth.lan/application/o/proxmon/.well-known/openid-configuration`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionEditSettings); err != nil {
			return err
		}
		saved, err := a.client.Settings(cmd.Context())
		if err != nil {
			return err
		}
		sso := ssoFromFlags(*saved)
		if sso.ClientID == "" || sso.DiscoveryURL == "" {
			return errors.New(errors.ErrInput, "A client id and discovery URL are required",
				"Pass --client-id and --discovery-url")
		}
		if _, err := a.client.UpdateSSO(cmd.Context(), sso); err != nil {
			return err
		}
		return success(cmd, "Single sign-on saved")
	},
}

var settingsSSOResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the single sign-on provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionEditSettings); err != nil {
			return err
		}
		ok, err := confirmAction("Remove single sign-on?", "Users will have to sign in with a password.")
		if err != nil {
			return err
		}
		if !ok {
			return cancelled(cmd)
		}
		if err := a.client.ResetSSO(cmd.Context()); err != nil {
			return err
		}
		return success(cmd, "Single sign-on removed")
	},
}

var settingsSSOTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the OpenID Connect provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionEditSettings); err != nil {
			return err
		}
		saved, err := a.client.Settings(cmd.Context())
		if err != nil {
			return err
		}
		msg, err := a.client.TestSSO(cmd.Context(), ssoFromFlags(*saved))
		if err != nil {
			return err
		}
		return success(cmd, fallback(msg, "Single sign-on provider works"))
	},
}

// Notification channel tests

var testTelegram api.TelegramTest
var testDiscord api.DiscordTest

var settingsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
}

var settingsTestTelegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Send a test message through Telegram",
	Long: `Send a test message through Telegram. Flags that are not given are
taken from the saved settings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionEditSettings); err != nil {
			return err
		}
		saved, err := a.client.Settings(cmd.Context())
		if err != nil {
			return err
		}
		t := api.TelegramTest{
			BotToken: pick(testTelegram.BotToken, saved.TelegramBotToken),
			APIID:    pick(testTelegram.APIID, saved.TelegramAPIID),
			APIHash:  pick(testTelegram.APIHash, saved.TelegramAPIHash),
			ChatID:   pick(testTelegram.ChatID, saved.TelegramChatID),
		}
		msg, err := a.client.TestTelegram(cmd.Context(), t)
		if err != nil {
			return err
		}
		return success(cmd, fallback(msg, "Telegram test message sent"))
	},
}

var settingsTestDiscordCmd = &cobra.Command{
	Use:   "discord",
	Short: "Send a test message through Discord",
	Long: `Send a test message through Discord. Flags that are not given are
taken from the saved settings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionEditSettings); err != nil {
			return err
		}
		saved, err := a.client.Settings(cmd.Context())
		if err != nil {
			return err
		}
		d := api.DiscordTest{
			BotToken:  pick(testDiscord.BotToken, saved.DiscordBotToken),
			GuildID:   pick(testDiscord.GuildID, saved.DiscordGuildID),
			ChannelID: pick(testDiscord.ChannelID, saved.DiscordChannelID),
		}
		msg, err := a.client.TestDiscord(cmd.Context(), d)
		if err != nil {
			return err
		}
		return success(cmd, fallback(msg, "Discord test message sent"))
	},
}

func init() {
	settingsShowCmd.Flags().BoolVar(&settingsShowSecrets, "show-secrets", false, "print tokens and secrets in full")

	f := settingsUpdateCmd.Flags()
	f.BoolVar(&settingsUpdate.telegramEnabled, "telegram-enabled", false, "send alerts through Telegram")
	f.StringVar(&settingsUpdate.telegramBotToken, "telegram-bot-token", "", "Telegram bot token")
	f.StringVar(&settingsUpdate.telegramAPIID, "telegram-api-id", "", "Telegram API id")
	f.StringVar(&settingsUpdate.telegramAPIHash, "telegram-api-hash", "", "Telegram API hash")
	f.StringVar(&settingsUpdate.telegramChatID, "telegram-chat-id", "", "Telegram chat id")
	f.BoolVar(&settingsUpdate.discordEnabled, "discord-enabled", false, "send alerts through Discord")
	f.StringVar(&settingsUpdate.discordBotToken, "discord-bot-token", "", "Discord bot token")
	f.StringVar(&settingsUpdate.discordGuildID, "discord-guild-id", "", "Discord server (guild) id")
	f.StringVar(&settingsUpdate.discordChannelID, "discord-channel-id", "", "Discord channel id")
	f.IntVar(&settingsUpdate.cpuThreshold, "cpu-threshold", api.DefaultCPUThreshold, "CPU alert threshold in percent")
	f.IntVar(&settingsUpdate.ramThreshold, "ram-threshold", api.DefaultRAMThreshold, "RAM alert threshold in percent")
	f.IntVar(&settingsUpdate.diskThreshold, "disk-threshold", api.DefaultDiskThreshold, "disk alert threshold in percent")

	for _, c := range []*cobra.Command{settingsProxmoxUpdateCmd, settingsProxmoxTestCmd} {
		c.Flags().StringVar(&proxmoxOpts.host, "host", "", "Proxmox URL, e.g. https://pve.lan:8006")
		c.Flags().StringVar(&proxmoxOpts.tokenID, "token-id", "", "API token id, e.g. user@pve!name")
		c.Flags().StringVar(&proxmoxOpts.tokenSecret, "token-secret", "", "API token secret")
	}

	for _, c := range []*cobra.Command{settingsSSOUpdateCmd, settingsSSOTestCmd} {
		c.Flags().StringVar(&ssoOpts.name, "name", "", "provider name shown on the login page")
		c.Flags().StringVar(&ssoOpts.clientID, "client-id", "", "OIDC client id")
		c.Flags().StringVar(&ssoOpts.clientSecret, "client-secret", "", "OIDC client secret")
		c.Flags().StringVar(&ssoOpts.discoveryURL, "discovery-url", "", "OIDC discovery document URL")
		c.Flags().StringVar(&ssoOpts.redirectURI, "redirect-uri", "", "redirect URI registered with the provider")
		c.Flags().StringVar(&ssoOpts.scopes, "scopes", "", "requested scopes, e.g. \"openid email profile\"")
		c.Flags().StringVar(&ssoOpts.responseType, "response-type", "", "OIDC response type, usually code")
	}

	tf := settingsTestTelegramCmd.Flags()
	tf.StringVar(&testTelegram.BotToken, "bot-token", "", "bot token")
	tf.StringVar(&testTelegram.APIID, "api-id", "", "API id")
	tf.StringVar(&testTelegram.APIHash, "api-hash", "", "API hash")
	tf.StringVar(&testTelegram.ChatID, "chat-id", "", "chat id")

	df := settingsTestDiscordCmd.Flags()
	df.StringVar(&testDiscord.BotToken, "bot-token", "", "bot token")
	df.StringVar(&testDiscord.GuildID, "guild-id", "", "server (guild) id")
	df.StringVar(&testDiscord.ChannelID, "channel-id", "", "channel id")

	settingsProxmoxCmd.AddCommand(settingsProxmoxUpdateCmd, settingsProxmoxResetCmd, settingsProxmoxTestCmd)
	settingsSSOCmd.AddCommand(settingsSSOUpdateCmd, settingsSSOResetCmd, settingsSSOTestCmd)
	settingsTestCmd.AddCommand(settingsTestTelegramCmd, settingsTestDiscordCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsUpdateCmd, settingsResetCmd,
		settingsProxmoxCmd, settingsSSOCmd, settingsTestCmd)
	rootCmd.AddCommand(settingsCmd)
}

// updateSettings reads the record, applies edit optimistically and writes
// the whole record back. The server's reply replaces the local copy.
func updateSettings(ctx context.Context, client *api.Client, edit func(api.Settings) api.Settings,
	write func(context.Context, api.Settings) (*api.Settings, error)) (api.Settings, error) {
	current, err := client.Settings(ctx)
	if err != nil {
		return api.Settings{}, err
	}
	cell := mutation.NewCell(*current)
	res := mutation.Apply(ctx, mutation.New(), "settings", cell, edit, write)
	return res.Value, res.Err
}

// applySettingsFlags copies the flags the user actually passed onto s.
func applySettingsFlags(flags *pflag.FlagSet, f settingsFlags, s api.Settings) api.Settings {
	str := func(name, v string, dst **string) {
		if flags.Changed(name) {
			v := v
			*dst = &v
		}
	}
	num := func(name string, v int, dst **int) {
		if flags.Changed(name) {
			v := v
			*dst = &v
		}
	}

	if flags.Changed("telegram-enabled") {
		s.TelegramEnabled = f.telegramEnabled
	}
	str("telegram-bot-token", f.telegramBotToken, &s.TelegramBotToken)
	str("telegram-api-id", f.telegramAPIID, &s.TelegramAPIID)
	str("telegram-api-hash", f.telegramAPIHash, &s.TelegramAPIHash)
	str("telegram-chat-id", f.telegramChatID, &s.TelegramChatID)

	if flags.Changed("discord-enabled") {
		s.DiscordEnabled = f.discordEnabled
	}
	str("discord-bot-token", f.discordBotToken, &s.DiscordBotToken)
	str("discord-guild-id", f.discordGuildID, &s.DiscordGuildID)
	str("discord-channel-id", f.discordChannelID, &s.DiscordChannelID)

	num("cpu-threshold", f.cpuThreshold, &s.CPUThreshold)
	num("ram-threshold", f.ramThreshold, &s.RAMThreshold)
	num("disk-threshold", f.diskThreshold, &s.DiskThreshold)
	return s
}

func validateThresholds(flags *pflag.FlagSet) error {
	for _, name := range []string{"cpu-threshold", "ram-threshold", "disk-threshold"} {
		if !flags.Changed(name) {
			continue
		}
		v, _ := flags.GetInt(name)
		if v < 1 || v > 100 {
			return errors.New(errors.ErrInput,
				fmt.Sprintf("--%s must be between 1 and 100, got %d", name, v), "")
		}
	}
	return nil
}

func proxmoxFromFlags(prompt bool) (api.ProxmoxSettings, error) {
	p := api.ProxmoxSettings{
		Host:        strings.TrimRight(strings.TrimSpace(proxmoxOpts.host), "/"),
		TokenID:     strings.TrimSpace(proxmoxOpts.tokenID),
		TokenSecret: proxmoxOpts.tokenSecret,
	}
	if p.Host == "" || p.TokenID == "" {
		return p, errors.New(errors.ErrInput, "--host and --token-id are required", "")
	}
	if p.TokenSecret == "" && prompt {
		secret, err := ui.Password("Proxmox API token secret")
		if err != nil {
			return p, err
		}
		p.TokenSecret = secret
	}
	if p.TokenSecret == "" {
		return p, errors.New(errors.ErrInput, "A token secret is required", "Pass --token-secret")
	}
	return p, nil
}

func ssoFromFlags(saved api.Settings) api.SSOSettings {
	return api.SSOSettings{
		Name:         pick(ssoOpts.name, saved.OIDCName),
		ClientID:     pick(ssoOpts.clientID, saved.OIDCClientID),
		ClientSecret: pick(ssoOpts.clientSecret, saved.OIDCClientSecret),
		DiscoveryURL: pick(ssoOpts.discoveryURL, saved.OIDCDiscoveryURL),
		RedirectURI:  pick(ssoOpts.redirectURI, saved.OIDCRedirectURI),
		Scopes:       pick(ssoOpts.scopes, saved.OIDCScopes),
		ResponseType: pick(ssoOpts.responseType, saved.OIDCResponseType),
	}
}

// pick returns flag when set, otherwise the saved value.
func pick(flag string, saved *string) string {
	if flag != "" {
		return flag
	}
	if saved != nil {
		return *saved
	}
	return ""
}

func fallback(msg, def string) string {
	if msg == "" {
		return def
	}
	return msg
}

// maskSecrets hides tokens and secrets, keeping their last four characters.
func maskSecrets(s api.Settings) api.Settings {
	for _, p := range []**string{
		&s.TelegramBotToken, &s.TelegramAPIHash,
		&s.DiscordBotToken,
		&s.ProxmoxTokenSecret,
		&s.OIDCClientSecret,
	} {
		if *p != nil && **p != "" {
			m := mask(**p)
			*p = &m
		}
	}
	return s
}

func mask(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

func printSettings(w io.Writer, s api.Settings) {
	val := func(p *string) string {
		if p == nil || *p == "" {
			return ui.MutedStyle.Render("not set")
		}
		return *p
	}
	cpu, ram, disk := s.Thresholds()

	section := func(title string) { fmt.Fprintln(w, ui.BoldStyle.Render(title)) }

	section("Thresholds")
	fmt.Fprintf(w, "  CPU %d%%  RAM %d%%  Disk %d%%\n", cpu, ram, disk)
	fmt.Fprintf(w, "  Alerts: CPU %s  RAM %s  Disk %s\n\n", onOff(s.CPUAlert), onOff(s.RAMAlert), onOff(s.DiskAlert))

	section("Telegram " + onOff(s.TelegramEnabled))
	fmt.Fprintf(w, "  Bot token  %s\n  API id     %s\n  API hash   %s\n  Chat id    %s\n\n",
		val(s.TelegramBotToken), val(s.TelegramAPIID), val(s.TelegramAPIHash), val(s.TelegramChatID))

	section("Discord " + onOff(s.DiscordEnabled))
	fmt.Fprintf(w, "  Bot token  %s\n  Guild id   %s\n  Channel id %s\n\n",
		val(s.DiscordBotToken), val(s.DiscordGuildID), val(s.DiscordChannelID))

	section("Proxmox")
	fmt.Fprintf(w, "  Host          %s\n  Token id      %s\n  Token secret  %s\n\n",
		val(s.ProxmoxHost), val(s.ProxmoxTokenID), val(s.ProxmoxTokenSecret))

	section("Single sign-on")
	fmt.Fprintf(w, "  Name           %s\n  Client id      %s\n  Client secret  %s\n  Discovery URL  %s\n  Redirect URI   %s\n  Scopes         %s\n",
		val(s.OIDCName), val(s.OIDCClientID), val(s.OIDCClientSecret), val(s.OIDCDiscoveryURL),
		val(s.OIDCRedirectURI), val(s.OIDCScopes))
}
