package provider

import (
	"net/url"
	"strings"

	"vidframe/internal/media"
)

// builtins returns the built-in providers in display order. Ids are
// stable: versions of the same host (vidsrc.wtf api/1, 2, 3) are separate
// providers because they come and go independently.
func builtins() []Descriptor {
	return []Descriptor{
		{ID: "multiembed", DisplayName: "Vidlink", QualityLabel: "LESS ADS AUTOPLAY",
			build: segments("https://vidlink.pro/movie/", "https://vidlink.pro/tv/", "?autoplay=true&title=true")},
		// The doubled "?" is the grammar this player has always been sent.
		{ID: "autoembed", DisplayName: "AutoEmbed", QualityLabel: "AUTOPLAY",
			build: segments("https://player.autoembed.cc/embed/movie/", "https://player.autoembed.cc/embed/tv/", "?block_popups=1?autoplay=true")},
		{ID: "2embed", DisplayName: "2Embed", QualityLabel: "LESS ADS",
			build: split(
				prefixed("https://www.2embed.cc/embed/", "?popups=0"),
				query("https://www.2embed.cc/embedtv/", "id", "s", "e", "popups=0"))},
		{ID: "newMultiembed", DisplayName: "MultiEmbed", QualityLabel: "Full HD",
			build: query("https://multiembed.mov/", "video_id", "s", "e", "tmdb=1")},
		{ID: "new2embed", DisplayName: "2Embed.org", QualityLabel: "HD",
			build: segments("https://2embed.org/embed/movie/", "https://2embed.org/embed/tv/", "")},
		{ID: "newAutoembed", DisplayName: "AutoEmbed.co", QualityLabel: "Full HD",
			build: dashed("https://autoembed.co/movie/tmdb/", "https://autoembed.co/tv/tmdb/")},
		{ID: "vidsrc", DisplayName: "VidSrc", QualityLabel: "LESS ADS",
			build: split(
				query("https://vidsrc.xyz/embed/movie", "tmdb", "", "", "block_popups=1"),
				query("https://vidsrc.xyz/embed/tv", "tmdb", "season", "episode", "block_popups=1"))},
		{ID: "moviesClub", DisplayName: "MoviesAPI", QualityLabel: "WORKING with ADS",
			build: dashed("https://moviesapi.club/movie/", "https://moviesapi.club/tv/")},
		{ID: "notonGo", DisplayName: "NontonGo", QualityLabel: "HD",
			build: segments("https://www.nontongo.win/embed/movie/", "https://www.nontongo.win/embed/tv/", "")},
		{ID: "111movies", DisplayName: "111Movies", QualityLabel: "HD",
			build: segments("https://111movies.com/movie/", "https://111movies.com/tv/", "")},
		{ID: "flickyhost", DisplayName: "FlickyHost", QualityLabel: "HINDI",
			build: split(
				query("https://flicky.host/embed/movie/", "id", "", "", ""),
				slashedQuery("https://flicky.host/embed/tv/", "id"))},
		{ID: "vidjoyPro", DisplayName: "Vidjoy Pro", QualityLabel: "HD LESS ADS",
			build: segments("https://vidjoy.pro/embed/movie/", "https://vidjoy.pro/embed/tv/", "")},
		{ID: "embedSU", DisplayName: "EmbedSU", QualityLabel: "HD",
			build: segments("https://embed.su/embed/movie/", "https://embed.su/embed/tv/", "")},
		{ID: "primeWire", DisplayName: "PrimeWire", QualityLabel: "HD",
			build: split(
				query("https://www.primewire.tf/embed/movie", "tmdb", "", "", ""),
				query("https://www.primewire.tf/embed/tv", "tmdb", "season", "episode", ""))},
		{ID: "smashyStream", DisplayName: "SmashyStream", QualityLabel: "HD",
			build: split(
				prefixed("https://player.smashy.stream/movie/", ""),
				pathThenQuery("https://player.smashy.stream/tv/", "s", "e"))},
		{ID: "vidStream", DisplayName: "VidStream", QualityLabel: "HD",
			build: segments("https://vidstream.site/embed/movie/", "https://vidstream.site/embed/tv/", "")},
		{ID: "videasy", DisplayName: "Videasy", QualityLabel: "AUTOPLAY",
			build: segments("https://player.videasy.net/movie/", "https://player.videasy.net/tv/", "")},
		{ID: "vidsrcWtfV1", DisplayName: "vidsrc.wtf V1", QualityLabel: "HD",
			build: vidsrcWtf("1")},
		{ID: "vidsrcWtfV2", DisplayName: "vidsrc.wtf V2", QualityLabel: "HD",
			build: vidsrcWtf("2")},
		{ID: "vidsrcWtfV3", DisplayName: "vidsrc.wtf V3", QualityLabel: "HD",
			build: vidsrcWtf("3")},
		{ID: "vidfastPro", DisplayName: "Vidfast.pro", QualityLabel: "AUTOPLAY",
			build: segments("https://vidfast.pro/movie/", "https://vidfast.pro/tv/", "?autoPlay=true")},
		{ID: "turbovidEu", DisplayName: "TurboVid.eu", QualityLabel: "HD",
			build: segments("https://turbovid.eu/api/req/movie/", "https://turbovid.eu/api/req/tv/", "")},
		{ID: "vidbingeDev", DisplayName: "Vidbinge.dev", QualityLabel: "HD",
			build: segments("https://vidbinge.dev/embed/movie/", "https://vidbinge.dev/embed/tv/", "")},
	}
}

func vidsrcWtf(version string) BuildFunc {
	base := "https://vidsrc.wtf/api/" + version
	return split(
		query(base+"/movie/", "id", "", "", ""),
		query(base+"/tv/", "id", "s", "e", ""))
}

// split dispatches on the reference kind.
func split(movie, series BuildFunc) BuildFunc {
	return func(ref media.MediaRef) string {
		if ref.Kind == media.Series {
			return series(ref)
		}
		return movie(ref)
	}
}

// segments renders movie/{id} and tv/{id}/{season}/{episode} path grammars.
func segments(moviePrefix, seriesPrefix, suffix string) BuildFunc {
	return split(
		prefixed(moviePrefix, suffix),
		func(ref media.MediaRef) string {
			return seriesPrefix + seg(ref.SeriesID) + "/" + seg(ref.Season) + "/" + seg(ref.EpisodeNo) + suffix
		})
}

// dashed renders movie/{id} and tv/{id}-{season}-{episode}.
func dashed(moviePrefix, seriesPrefix string) BuildFunc {
	return split(
		prefixed(moviePrefix, ""),
		func(ref media.MediaRef) string {
			return seriesPrefix + seg(ref.SeriesID) + "-" + seg(ref.Season) + "-" + seg(ref.EpisodeNo)
		})
}

// prefixed renders prefix{id}suffix using the catalog id of either kind.
func prefixed(prefix, suffix string) BuildFunc {
	return func(ref media.MediaRef) string {
		return prefix + seg(ref.CatalogID()) + suffix
	}
}

// query renders base?{idKey}={id}[&{extra}][&{seasonKey}={s}&{episodeKey}={e}].
// Parameter order is part of the grammar, so the string is assembled by
// hand instead of through url.Values (which sorts keys).
func query(base, idKey, seasonKey, episodeKey, extra string) BuildFunc {
	return func(ref media.MediaRef) string {
		var b strings.Builder
		b.WriteString(base)
		b.WriteString("?" + idKey + "=" + url.QueryEscape(ref.CatalogID()))
		if extra != "" {
			b.WriteString("&" + extra)
		}
		if seasonKey != "" && ref.Kind == media.Series {
			b.WriteString("&" + seasonKey + "=" + url.QueryEscape(ref.Season))
			b.WriteString("&" + episodeKey + "=" + url.QueryEscape(ref.EpisodeNo))
		}
		return b.String()
	}
}

// slashedQuery renders base?{idKey}={id}/{season}/{episode}.
func slashedQuery(base, idKey string) BuildFunc {
	return func(ref media.MediaRef) string {
		return base + "?" + idKey + "=" + url.QueryEscape(ref.SeriesID) + "/" + seg(ref.Season) + "/" + seg(ref.EpisodeNo)
	}
}

// pathThenQuery renders base{id}?{seasonKey}={s}&{episodeKey}={e}.
func pathThenQuery(base, seasonKey, episodeKey string) BuildFunc {
	return func(ref media.MediaRef) string {
		return base + seg(ref.SeriesID) + "?" + seasonKey + "=" + url.QueryEscape(ref.Season) + "&" + episodeKey + "=" + url.QueryEscape(ref.EpisodeNo)
	}
}

func seg(s string) string {
	return url.PathEscape(s)
}
