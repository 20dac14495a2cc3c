package versions

func init() {
	register("20250101000002", "create_rooms",
		[]string{
			`CREATE TABLE rooms (
				id VARCHAR(36) PRIMARY KEY,
				property_id VARCHAR(36) NOT NULL REFERENCES properties (id),
				number VARCHAR(32) NOT NULL,
				floor VARCHAR(32) NOT NULL DEFAULT '',
				type VARCHAR(16) NOT NULL,
				price BIGINT NOT NULL CHECK (price > 0),
				facilities TEXT NOT NULL DEFAULT '[]',
				status VARCHAR(16) NOT NULL DEFAULT 'vacant',
				tenant_id VARCHAR(36),
				row_version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				CHECK ((status = 'occupied') = (tenant_id IS NOT NULL))
			)`,
			`CREATE INDEX idx_rooms_property_status ON rooms (property_id, status)`,
			`CREATE UNIQUE INDEX idx_rooms_property_number ON rooms (property_id, number)`,
			`CREATE UNIQUE INDEX idx_rooms_tenant ON rooms (tenant_id)`,
		},
		[]string{`DROP TABLE rooms`},
	)
}
