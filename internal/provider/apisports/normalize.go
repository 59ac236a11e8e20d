package apisports

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/provider"
)

type endpoint struct {
	path      string
	normalize func(raw json.RawMessage, params provider.Params) ([]domain.ProviderRecord, error)
}

var endpoints = map[domain.EntityType]endpoint{
	domain.EntityCountries:  {path: "/countries", normalize: normalizeCountries},
	domain.EntityLeagues:    {path: "/leagues", normalize: normalizeLeagues},
	domain.EntitySeasons:    {path: "/leagues/seasons", normalize: normalizeSeasons},
	domain.EntityTeams:      {path: "/teams", normalize: normalizeTeams},
	domain.EntityBookmakers: {path: "/odds/bookmakers", normalize: normalizeNamed(domain.EntityBookmakers)},
	domain.EntityMarkets:    {path: "/odds/bets", normalize: normalizeNamed(domain.EntityMarkets)},
	domain.EntityFixtures:   {path: "/fixtures", normalize: normalizeFixtures},
}

func normalizeCountries(raw json.RawMessage, _ provider.Params) ([]domain.ProviderRecord, error) {
	var rows []struct {
		Name string `json:"name"`
		Code string `json:"code"`
		Flag string `json:"flag"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}

	records := make([]domain.ProviderRecord, 0, len(rows))
	for _, r := range rows {
		// "World" has no ISO code
		id := r.Code
		if id == "" {
			id = r.Name
		}
		records = append(records, domain.ProviderRecord{
			EntityType: domain.EntityCountries,
			ExternalID: id,
			Name:       r.Name,
			Code:       r.Code,
			ImageURL:   r.Flag,
		})
	}
	return records, nil
}

func normalizeLeagues(raw json.RawMessage, _ provider.Params) ([]domain.ProviderRecord, error) {
	var rows []struct {
		League struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
			Logo string `json:"logo"`
		} `json:"league"`
		Country struct {
			Name string `json:"name"`
			Code string `json:"code"`
		} `json:"country"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}

	records := make([]domain.ProviderRecord, 0, len(rows))
	for _, r := range rows {
		parent := r.Country.Code
		if parent == "" {
			parent = r.Country.Name
		}
		records = append(records, domain.ProviderRecord{
			EntityType:       domain.EntityLeagues,
			ExternalID:       strconv.Itoa(r.League.ID),
			Name:             r.League.Name,
			ImageURL:         r.League.Logo,
			ParentExternalID: parent,
			Extra:            map[string]string{"type": r.League.Type},
		})
	}
	return records, nil
}

func normalizeSeasons(raw json.RawMessage, _ provider.Params) ([]domain.ProviderRecord, error) {
	var years []int
	if err := json.Unmarshal(raw, &years); err != nil {
		return nil, err
	}

	records := make([]domain.ProviderRecord, 0, len(years))
	for _, y := range years {
		id := strconv.Itoa(y)
		records = append(records, domain.ProviderRecord{
			EntityType: domain.EntitySeasons,
			ExternalID: id,
			Name:       id,
		})
	}
	return records, nil
}

func normalizeTeams(raw json.RawMessage, params provider.Params) ([]domain.ProviderRecord, error) {
	var rows []struct {
		Team struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
			Code string `json:"code"`
			Logo string `json:"logo"`
		} `json:"team"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}

	records := make([]domain.ProviderRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, domain.ProviderRecord{
			EntityType:       domain.EntityTeams,
			ExternalID:       strconv.Itoa(r.Team.ID),
			Name:             r.Team.Name,
			Code:             r.Team.Code,
			ImageURL:         r.Team.Logo,
			ParentExternalID: params["league"],
		})
	}
	return records, nil
}

// normalizeNamed handles the flat {id, name} lists of the odds endpoints.
func normalizeNamed(entityType domain.EntityType) func(json.RawMessage, provider.Params) ([]domain.ProviderRecord, error) {
	return func(raw json.RawMessage, _ provider.Params) ([]domain.ProviderRecord, error) {
		var rows []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, err
		}

		records := make([]domain.ProviderRecord, 0, len(rows))
		for _, r := range rows {
			records = append(records, domain.ProviderRecord{
				EntityType: entityType,
				ExternalID: strconv.Itoa(r.ID),
				Name:       r.Name,
			})
		}
		return records, nil
	}
}

func normalizeFixtures(raw json.RawMessage, _ provider.Params) ([]domain.ProviderRecord, error) {
	var rows []struct {
		Fixture struct {
			ID     int       `json:"id"`
			Date   time.Time `json:"date"`
			Status struct {
				Short string `json:"short"`
			} `json:"status"`
		} `json:"fixture"`
		League struct {
			ID     int `json:"id"`
			Season int `json:"season"`
		} `json:"league"`
		Teams struct {
			Home struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			} `json:"home"`
			Away struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			} `json:"away"`
		} `json:"teams"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}

	records := make([]domain.ProviderRecord, 0, len(rows))
	for _, r := range rows {
		startsAt := r.Fixture.Date.UTC()
		records = append(records, domain.ProviderRecord{
			EntityType:       domain.EntityFixtures,
			ExternalID:       strconv.Itoa(r.Fixture.ID),
			Name:             r.Teams.Home.Name + " vs " + r.Teams.Away.Name,
			ParentExternalID: strconv.Itoa(r.League.ID),
			StartsAt:         &startsAt,
			Status:           r.Fixture.Status.Short,
			Extra: map[string]string{
				"season":       strconv.Itoa(r.League.Season),
				"home_team_id": strconv.Itoa(r.Teams.Home.ID),
				"away_team_id": strconv.Itoa(r.Teams.Away.ID),
			},
		})
	}
	return records, nil
}
