// Package config manages the character catalogs played by the simulated
// guessing engine.
//
// Catalogs are JSON files in a single directory. Each file defines:
//   - A display name and description
//   - The yes/no questions the engine may ask
//   - The characters, with the trait answers for each question
//   - Optional adult flags, hidden from games started in child mode
//
// Default Selection:
//
// classic.json is the default when present. Otherwise the first valid file
// in name order is used, and an empty directory falls back to the built-in
// engine.DefaultCatalog.
//
// Usage:
//
//	manager, err := config.NewManager("catalogs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	catalog, err := manager.LoadCatalog("classic")
//	catalogs, err := manager.ListCatalogs()
package config
