// Command seed applies the schema and inserts a few sample pipeline rows.
// Intended for development databases only.
package main

import (
	"context"
	"errors"
	"time"

	"github.com/joho/godotenv"

	"fundcrm/internal/adapter/repo"
	"fundcrm/internal/domain"
	"fundcrm/internal/infra"
)

const schema = `
CREATE TABLE IF NOT EXISTS donors (
	key               text PRIMARY KEY,
	organization_name text NOT NULL,
	contact_person    text NOT NULL DEFAULT '',
	contact_email     text NOT NULL DEFAULT '',
	contact_role      text NOT NULL DEFAULT '',
	current_stage     text NOT NULL,
	previous_stage    text NOT NULL DEFAULT '',
	assigned_to       text NOT NULL DEFAULT '',
	next_action       text NOT NULL DEFAULT '',
	next_action_date  text NOT NULL DEFAULT '',
	last_contact_date text NOT NULL DEFAULT '',
	sector_tags       text NOT NULL DEFAULT '',
	geography         text NOT NULL DEFAULT '',
	notes             text NOT NULL DEFAULT '',
	probability       integer,
	last_updated      timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS activities (
	id           bigserial PRIMARY KEY,
	record_key   text NOT NULL,
	actor        text NOT NULL,
	action       text NOT NULL,
	before       jsonb NOT NULL DEFAULT '{}'::jsonb,
	after        jsonb NOT NULL DEFAULT '{}'::jsonb,
	out_of_order boolean NOT NULL DEFAULT false,
	ts           timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS activities_record_key_idx ON activities (record_key, id);
`

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	if _, err := dbpool.Exec(ctx, schema); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}
	logger.Info().Msg("schema applied")

	donors := repo.NewDonorRepository(dbpool, cfg.StoreTimeout)
	now := time.Now().UTC().Truncate(time.Microsecond)

	prob := func(p int) *int { return &p }
	samples := []domain.DonorRecord{
		{
			OrganizationName: "Wipro Foundation",
			ContactPerson:    "Anita Rao",
			ContactEmail:     "anita.rao@wiprofoundation.org",
			CurrentStage:     domain.StageInitialContact,
			SectorTags:       "education, digital literacy",
			Geography:        "Karnataka",
			Probability:      prob(30),
			LastUpdated:      now,
		},
		{
			OrganizationName: "Tata Trust",
			ContactPerson:    "Rahul Mehta",
			ContactEmail:     "rahul.mehta@tatatrust.org",
			CurrentStage:     domain.StageProposalSent,
			PreviousStage:    domain.StageFollowUpSent,
			AssignedTo:       "gautam@dikshafoundation.org",
			NextAction:       "Call to discuss proposal",
			NextActionDate:   "2026-09-15",
			SectorTags:       "rural development",
			Geography:        "Maharashtra",
			Probability:      prob(60),
			LastUpdated:      now,
		},
		{
			OrganizationName: "HDFC Bank CSR",
			CurrentStage:     domain.StageIntroSent,
			PreviousStage:    domain.StageInitialContact,
			SectorTags:       "financial inclusion",
			Geography:        "Pan-India",
			LastUpdated:      now,
		},
	}

	for i := range samples {
		err := donors.Insert(ctx, &samples[i])
		switch {
		case err == nil:
			logger.Info().Str("org", samples[i].OrganizationName).Msg("seeded")
		case errors.Is(err, domain.ErrAlreadyExists):
			logger.Info().Str("org", samples[i].OrganizationName).Msg("already present, skipped")
		default:
			logger.Fatal().Err(err).Str("org", samples[i].OrganizationName).Msg("seed failed")
		}
	}
}
