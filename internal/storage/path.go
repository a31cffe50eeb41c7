package storage

import (
	"fmt"
	"path"
	"regexp"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildSheetPath returns the object key of a saved sheet.
func BuildSheetPath(name string) (string, error) {
	if err := validatePathComponent(name, "sheet name"); err != nil {
		return "", err
	}
	return path.Join("sheets", name+".json"), nil
}

// BuildContainerPath returns the object key of a container's JSON-lines
// document file.
func BuildContainerPath(account, database, container string) (string, error) {
	return buildContainerKey(account, database, container, ".jsonl")
}

// BuildContainerManifestPath returns the object key of a container's
// metadata document.
func BuildContainerManifestPath(account, database, container string) (string, error) {
	return buildContainerKey(account, database, container, ".container.json")
}

// ContainerPrefix is the key prefix shared by every container of account.
func ContainerPrefix(account string) (string, error) {
	if err := validatePathComponent(account, "account name"); err != nil {
		return "", err
	}
	return path.Join("containers", account) + "/", nil
}

func buildContainerKey(account, database, container, suffix string) (string, error) {
	if err := validatePathComponent(account, "account name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(database, "database id"); err != nil {
		return "", err
	}
	if err := validatePathComponent(container, "container id"); err != nil {
		return "", err
	}
	return path.Join("containers", account, database, container+suffix), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
