package discord

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"soundbot/internal/config"
	"soundbot/internal/dispatcher"
	"soundbot/internal/session"
)

// Bot is the Discord side of the soundboard: it owns the gateway session and
// feeds chat commands into the shared dispatcher.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	registry *session.Registry
	disp     *dispatcher.Dispatcher

	shutdownOnce sync.Once
}

func NewBot(cfg *config.Config, registry *session.Registry, disp *dispatcher.Dispatcher) *Bot {
	return &Bot{
		cfg:      cfg,
		registry: registry,
		disp:     disp,
	}
}

// Run opens the Discord session and blocks until ctx is cancelled, then
// disconnects every active voice call and closes the session.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg

	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onGuildCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	<-ctx.Done()
	log.Println("[INFO] ❎ Shutdown signal received. Cleaning up...")
	b.Shutdown()
	return nil
}

// Shutdown disconnects all active voice calls and closes the gateway
// session. Safe to call more than once; in-flight commands are left to
// finish on their own goroutines.
func (b *Bot) Shutdown() {
	b.shutdownOnce.Do(func() {
		for roomID, call := range b.registry.Drain() {
			if err := call.Leave(); err != nil {
				log.Printf("[WARN] Failed to disconnect voice in guild %s: %v", roomID, err)
			}
		}
		if b.dg != nil {
			if err := b.dg.Close(); err != nil {
				log.Println("[WARN] Failed to close Discord session:", err)
			}
		}
	})
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent
}

// onReady captures the connection context and the guild snapshot into the
// registry. Commands arriving before this fail with a "not ready" reply.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	rooms := make([]session.Room, 0, len(r.Guilds))
	for _, g := range r.Guilds {
		rooms = append(rooms, session.Room{ID: g.ID, Name: g.Name})
	}
	b.registry.SetConnection(&connector{dg: s}, rooms)

	botInfo, err := s.User("@me")
	if err != nil {
		log.Println("[WARN] Error retrieving bot user:", err)
		return
	}
	log.Printf("[INFO] ✅ %v is connected to %d guild(s).", botInfo.Username, len(rooms))
}

// onGuildCreate keeps the known-room list current for guilds that appear
// after the ready snapshot.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.registry.AddRoom(session.Room{ID: g.Guild.ID, Name: g.Guild.Name})
	log.Printf("[INFO] Bot added to guild: %s (%s)", g.Guild.ID, g.Guild.Name)
}

// onMessageCreate parses "<prefix><verb> [argument]" messages and routes
// them to the dispatcher. One plain-text reply per command. Handlers run on
// discordgo's event goroutines, so they may overlap with each other and with
// the console source; all shared state stays behind the registry.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	if !strings.HasPrefix(m.Content, b.cfg.CommandPrefix) {
		return
	}
	if m.GuildID == "" {
		return // soundboard commands only make sense in guilds
	}

	verb, arg := splitCommand(strings.TrimPrefix(m.Content, b.cfg.CommandPrefix))

	var reply string
	switch verb {
	case "join":
		reply = b.join(m)
	case "leave":
		reply = b.disp.Leave(m.GuildID)
	case "mute":
		reply = b.disp.Mute(m.GuildID)
	case "unmute":
		reply = b.disp.Unmute(m.GuildID)
	case "deafen":
		reply = b.disp.Deafen(m.GuildID)
	case "undeafen":
		reply = b.disp.Undeafen(m.GuildID)
	case "play":
		reply = b.disp.Play(m.GuildID, arg, m.Author.Username)
	case "ping":
		reply = b.disp.Ping()
	default:
		return
	}

	checkMsg(s.ChannelMessageSend(m.ChannelID, reply))
}

// join resolves the author's current voice channel before dispatching.
func (b *Bot) join(m *discordgo.MessageCreate) string {
	channelID, err := b.findUserVoiceChannel(m.GuildID, m.Author.ID)
	if err != nil {
		return "Not in a voice channel"
	}
	return b.disp.Join(m.GuildID, channelID)
}

// findUserVoiceChannel finds the voice channel a user is currently in.
func (b *Bot) findUserVoiceChannel(guildID, userID string) (string, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, nil
		}
	}
	return "", fmt.Errorf("user not in any voice channel")
}

func splitCommand(s string) (verb, arg string) {
	verb, arg, _ = strings.Cut(strings.TrimSpace(s), " ")
	return strings.ToLower(verb), strings.TrimSpace(arg)
}

// checkMsg logs a failed reply send; the command itself already ran.
func checkMsg(_ *discordgo.Message, err error) {
	if err != nil {
		log.Println("[ERR] Error sending message:", err)
	}
}
