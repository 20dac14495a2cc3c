package versions

func init() {
	register("20250101000001", "create_properties",
		[]string{
			`CREATE TABLE properties (
				id VARCHAR(36) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				address TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
		},
		[]string{`DROP TABLE properties`},
	)
}
