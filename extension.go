package sqlite

// EnableExtensions allows LoadExtension and the load_extension SQL
// function on c.
func (c *Conn) EnableExtensions() error {
	if err := c.check("EnableExtensions"); err != nil {
		return err
	}
	return reserr(c.db, "EnableExtensions", "", c.db.EnableLoadExtension(true))
}

// DisableExtensions turns extension loading off again.
func (c *Conn) DisableExtensions() error {
	if err := c.check("DisableExtensions"); err != nil {
		return err
	}
	return reserr(c.db, "DisableExtensions", "", c.db.EnableLoadExtension(false))
}

// LoadExtension loads the shared library name into c, using its default
// entry point. Extensions must be enabled first.
func (c *Conn) LoadExtension(name string) error {
	if err := c.check("LoadExtension"); err != nil {
		return err
	}
	return reserr(c.db, "LoadExtension", name, c.db.LoadExtension(name, ""))
}
