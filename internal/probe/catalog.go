package probe

// catalog maps each category to the programs probed within it. Static and
// known at build time — extensibility is out of scope. maven/mvn/mvnd are
// folded into build_systems rather than kept as a separate maven_tools
// category, matching this service's literal category enumeration.
var catalog = map[string][]string{
	"package_managers": {"npm", "pip", "cargo", "dnf", "apt", "snap", "flatpak", "brew"},
	"rust_tools":        {"cargo", "rustc", "rustfmt", "clippy-driver"},
	"python_tools":      {"python", "python3", "pip", "pytest", "black", "ruff", "mypy"},
	"build_systems":     {"make", "cmake", "ninja", "gradle", "maven", "mvn", "mvnw", "mvnd"},
	"c_cpp_tools":       {"gcc", "g++", "clang", "gdb", "lldb"},
	"java_jvm_tools": {
		"java", "javac", "javadoc", "jar", "jarsigner", "jconsole", "jdeps", "jlink", "jshell",
		"kotlin", "kotlinc", "scala", "scalac", "groovy", "groovyc",
	},
	"node_js_tools":       {"node", "deno", "bun", "npm", "yarn"},
	"go_tools":            {"go", "gofmt"},
	"editors_dev":         {"vim", "nvim", "emacs", "code", "zed"},
	"search_productivity": {"rg", "fd", "fzf", "jq", "bat", "tree", "exa"},
	"system_perf":         {"htop", "ps", "top", "df", "du"},
	"containers":          {"docker", "podman", "kubectl", "helm"},
	"networking":          {"curl", "wget", "dig", "traceroute"},
	"security":            {"openssl", "gpg", "ssh-keygen"},
	"databases":           {"sqlite3", "psql", "mysql", "redis-cli"},
	"vcs":                 {"git", "gh"},
}

// Categories returns the known category names.
func Categories() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	return names
}
