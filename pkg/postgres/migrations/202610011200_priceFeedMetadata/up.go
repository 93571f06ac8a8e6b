package _202610011200_priceFeedMetadata

import (
	"database/sql"
	"fmt"

	"github.com/Layr-Labs/pricefeed-sidecar/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists price_feeds (
			id varchar(64) primary key,
			created_at timestamp with time zone DEFAULT current_timestamp
		);
		`,
		`create table if not exists price_feed_attributes (
			feed_id varchar(64) not null references price_feeds(id) on delete cascade,
			name varchar not null,
			value varchar not null,
			unique(feed_id, name)
		);
		`,
		`create index if not exists idx_price_feed_attributes_name_value on price_feed_attributes (name, value);`,
	}

	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			fmt.Printf("Failed to execute query: %s\n", query)
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202610011200_priceFeedMetadata"
}
