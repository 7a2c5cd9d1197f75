package store

// ReconnectForeignKeys drops idle connections and reports the foreign_keys
// setting seen by a freshly opened one.
func ReconnectForeignKeys(s *SQLite) (int, error) {
	s.db.SetMaxIdleConns(0)
	var on int
	err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&on)
	return on, err
}
