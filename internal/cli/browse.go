package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
	"github.com/tejashwikalptaru/saavntune/internal/app"
	"github.com/tejashwikalptaru/saavntune/internal/service"
)

type SearchParams struct {
	Query   []string `pos:"true" required:"true" help:"Search terms."`
	Artists bool     `short:"a" help:"List matching artist names instead of songs." default:"false"`
	Config  string   `short:"c" optional:"true" help:"Path to a config.toml file."`
}

type ArtistParams struct {
	Query  []string `pos:"true" required:"true" help:"Artist name (or part of it)."`
	Albums bool     `help:"List the artist's albums instead of songs." default:"false"`
	Config string   `short:"c" optional:"true" help:"Path to a config.toml file."`
}

type CollectionParams struct {
	Query  []string `pos:"true" required:"true" help:"Name (or part of it)."`
	Config string   `short:"c" optional:"true" help:"Path to a config.toml file."`
}

type SuggestParams struct {
	Count  int    `short:"n" help:"Number of suggestions." default:"10"`
	Config string `short:"c" optional:"true" help:"Path to a config.toml file."`
}

func SearchCmd() *cobra.Command {
	return boa.CmdT[SearchParams]{
		Use:         "search",
		Short:       "Search the catalog for playable songs",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *SearchParams, cmd *cobra.Command, args []string) {
			e, err := loadEnv(params.Config, os.Stdout)
			exitOnError("search", err)
			exitOnError("search", runSearch(commandContext(cmd), app.NewResolver(e.cfg, e.logger), params, e.out))
		},
	}.ToCobra()
}

func ArtistCmd() *cobra.Command {
	return boa.CmdT[ArtistParams]{
		Use:         "artist",
		Short:       "Show an artist's songs or albums",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *ArtistParams, cmd *cobra.Command, args []string) {
			e, err := loadEnv(params.Config, os.Stdout)
			exitOnError("artist", err)
			exitOnError("artist", runArtist(commandContext(cmd), app.NewResolver(e.cfg, e.logger), params, e.out))
		},
	}.ToCobra()
}

func AlbumCmd() *cobra.Command {
	return boa.CmdT[CollectionParams]{
		Use:         "album",
		Short:       "Show the songs of an album",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *CollectionParams, cmd *cobra.Command, args []string) {
			e, err := loadEnv(params.Config, os.Stdout)
			exitOnError("album", err)
			exitOnError("album", runAlbum(commandContext(cmd), app.NewResolver(e.cfg, e.logger), params, e.out))
		},
	}.ToCobra()
}

func PlaylistCmd() *cobra.Command {
	return boa.CmdT[CollectionParams]{
		Use:         "playlist",
		Short:       "Show the songs of a playlist",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *CollectionParams, cmd *cobra.Command, args []string) {
			e, err := loadEnv(params.Config, os.Stdout)
			exitOnError("playlist", err)
			exitOnError("playlist", runPlaylist(commandContext(cmd), app.NewResolver(e.cfg, e.logger), params, e.out))
		},
	}.ToCobra()
}

func SuggestCmd() *cobra.Command {
	return boa.CmdT[SuggestParams]{
		Use:         "suggest",
		Short:       "Suggest a few popular songs",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *SuggestParams, cmd *cobra.Command, args []string) {
			e, err := loadEnv(params.Config, os.Stdout)
			exitOnError("suggest", err)
			exitOnError("suggest", runSuggest(commandContext(cmd), app.NewResolver(e.cfg, e.logger), params, e.out))
		},
	}.ToCobra()
}

func joinQuery(words []string) string {
	return strings.TrimSpace(strings.Join(words, " "))
}

func runSearch(ctx context.Context, resolver *service.Resolver, params *SearchParams, out io.Writer) error {
	query := joinQuery(params.Query)

	if params.Artists {
		names, err := resolver.SearchArtists(ctx, query)
		if err != nil {
			return err
		}
		renderNames(out, "Artist", names)
		return nil
	}

	songs, err := resolver.Resolve(ctx, query)
	if err != nil {
		return err
	}
	renderSongs(out, songs, -1)
	return nil
}

func runArtist(ctx context.Context, resolver *service.Resolver, params *ArtistParams, out io.Writer) error {
	query := joinQuery(params.Query)

	if params.Albums {
		name, albums, err := resolver.ArtistAlbums(ctx, query)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, titleStyle.Render(name))
		renderAlbums(out, albums)
		return nil
	}

	name, songs, err := resolver.ResolveArtist(ctx, query)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, titleStyle.Render(name))
	renderSongs(out, songs, -1)
	return nil
}

func runAlbum(ctx context.Context, resolver *service.Resolver, params *CollectionParams, out io.Writer) error {
	name, songs, err := resolver.ResolveAlbum(ctx, joinQuery(params.Query))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, titleStyle.Render(name))
	renderSongs(out, songs, -1)
	return nil
}

func runPlaylist(ctx context.Context, resolver *service.Resolver, params *CollectionParams, out io.Writer) error {
	name, songs, err := resolver.ResolvePlaylist(ctx, joinQuery(params.Query))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, titleStyle.Render(name))
	renderSongs(out, songs, -1)
	return nil
}

func runSuggest(ctx context.Context, resolver *service.Resolver, params *SuggestParams, out io.Writer) error {
	songs, err := resolver.Suggestions(ctx, params.Count)
	if err != nil {
		return err
	}
	renderSongs(out, songs, -1)
	return nil
}
