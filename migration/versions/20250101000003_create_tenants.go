package versions

func init() {
	register("20250101000003", "create_tenants",
		[]string{
			`CREATE TABLE tenants (
				id VARCHAR(36) PRIMARY KEY,
				property_id VARCHAR(36) NOT NULL REFERENCES properties (id),
				name VARCHAR(255) NOT NULL,
				phone VARCHAR(32) NOT NULL,
				email VARCHAR(255) NOT NULL DEFAULT '',
				room_id VARCHAR(36),
				start_date TIMESTAMP NOT NULL,
				end_date TIMESTAMP NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'active',
				payment_status VARCHAR(16) NOT NULL DEFAULT 'pending',
				last_payment_date TIMESTAMP,
				row_version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX idx_tenants_property_status ON tenants (property_id, status)`,
			`CREATE UNIQUE INDEX idx_tenants_room ON tenants (room_id)`,
		},
		[]string{`DROP TABLE tenants`},
	)
}
