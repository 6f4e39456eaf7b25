package spotify

import (
	"github.com/ewilliams-labs/latent/internal/core/domain"
)

// mapArtists converts raw Spotify artists, dropping entries without an id.
func mapArtists(items []spotifyArtist) []domain.Artist {
	artists := make([]domain.Artist, 0, len(items))
	for _, a := range items {
		if a.ID == "" {
			continue
		}
		genres := a.Genres
		if genres == nil {
			genres = []string{}
		}
		artists = append(artists, domain.Artist{
			ID:         a.ID,
			Name:       a.Name,
			Genres:     genres,
			Popularity: a.Popularity,
		})
	}
	return artists
}

// mapTracks converts raw Spotify tracks, flattening artists to their ids.
func mapTracks(items []spotifyTrack) []domain.Track {
	tracks := make([]domain.Track, 0, len(items))
	for _, st := range items {
		if st.ID == "" {
			continue
		}
		ids := make([]string, 0, len(st.Artists))
		for _, a := range st.Artists {
			ids = append(ids, a.ID)
		}
		preview := ""
		if st.PreviewURL != nil {
			preview = *st.PreviewURL
		}
		tracks = append(tracks, domain.Track{
			ID:         st.ID,
			Name:       st.Name,
			ArtistIDs:  ids,
			PreviewURL: preview,
			Popularity: st.Popularity,
		})
	}
	return tracks
}

func mapAlbum(a spotifyAlbum) domain.Album {
	return domain.Album{ID: a.ID, Name: a.Name, ReleaseDate: a.ReleaseDate}
}

func mapFeatures(f spotifyAudioFeatures) domain.AudioFeatures {
	return domain.AudioFeatures{
		domain.FeatureDanceability:     f.Danceability,
		domain.FeatureEnergy:           f.Energy,
		domain.FeatureValence:          f.Valence,
		domain.FeatureTempo:            f.Tempo,
		domain.FeatureInstrumentalness: f.Instrumentalness,
		domain.FeatureAcousticness:     f.Acousticness,
	}
}
