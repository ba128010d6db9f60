package sqlite

// Serialize returns the content of schema ("" means "main") in the same
// format as a database file.
func (c *Conn) Serialize(schema string) ([]byte, error) {
	if err := c.check("Serialize"); err != nil {
		return nil, err
	}
	b, err := c.db.Serialize(schema)
	return b, reserr(c.db, "Serialize", schema, err)
}

// DeserializeReadOnly replaces schema ("" means "main") with the
// database image in data. The image is copied; it cannot be modified
// through c.
func (c *Conn) DeserializeReadOnly(schema string, data []byte) error {
	if err := c.check("DeserializeReadOnly"); err != nil {
		return err
	}
	return reserr(c.db, "DeserializeReadOnly", schema, c.db.Deserialize(schema, data, true))
}
