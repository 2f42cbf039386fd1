package store

const schema = `
CREATE TABLE IF NOT EXISTS packages (
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    version TEXT,
    installed_on_request BOOLEAN NOT NULL DEFAULT 0,
    top_level BOOLEAN NOT NULL DEFAULT 0,
    PRIMARY KEY (name, kind)
);

CREATE TABLE IF NOT EXISTS dependencies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    package TEXT NOT NULL,
    package_kind TEXT NOT NULL,
    depends_on TEXT NOT NULL,
    depends_on_kind TEXT NOT NULL,
    dep_type TEXT NOT NULL,
    UNIQUE (package, package_kind, depends_on, depends_on_kind),
    FOREIGN KEY (package, package_kind) REFERENCES packages(name, kind) ON DELETE CASCADE,
    FOREIGN KEY (depends_on, depends_on_kind) REFERENCES packages(name, kind) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS external_dependencies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    package TEXT NOT NULL,
    package_kind TEXT NOT NULL,
    depends_on TEXT NOT NULL,
    depends_on_kind TEXT NOT NULL,
    dep_type TEXT NOT NULL,
    FOREIGN KEY (package, package_kind) REFERENCES packages(name, kind) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deps_package ON dependencies(package, package_kind);
CREATE INDEX IF NOT EXISTS idx_deps_depends ON dependencies(depends_on, depends_on_kind);
CREATE INDEX IF NOT EXISTS idx_external_package ON external_dependencies(package, package_kind);
`
