// Package denylist implements the command-safety gate: a case-insensitive
// substring match against a built-in pattern table plus caller-supplied
// extra patterns. No regular expressions, no AST parsing — the contract is
// plain substring containment, checked in order, first match wins.
package denylist

import "strings"

// defaultPatterns mirrors the dangerous-command catalog an enhanced terminal
// service must refuse to spawn: destructive filesystem operations,
// power-state transitions, fork bombs, recursive permission changes, kernel
// module manipulation, package-removal, and relocation of system
// directories.
var defaultPatterns = []string{
	"rm -rf /",
	"rm -rf /*",
	"rm -rf ~",
	"rm -rf *",
	"rm -fr /",
	"rm --no-preserve-root",
	"> /dev/sda",
	"> /dev/hda",
	"dd if=/dev/zero",
	"dd if=/dev/random",
	"mkfs",
	"mkfs.ext",
	"format c:",
	"shutdown",
	"reboot",
	"halt",
	"poweroff",
	"init 0",
	"init 6",
	"systemctl poweroff",
	"systemctl reboot",
	"systemctl halt",
	":(){:|:&};:",
	":(){ :|:& };:",
	"fork while fork",
	"chmod 777 /",
	"chmod -r 777 /",
	"chown -r root",
	"chown root /",
	"apt-get remove --purge",
	"apt remove --purge",
	"yum remove",
	"dnf remove",
	"pacman -r",
	"brew uninstall --force",
	"modprobe -r",
	"rmmod",
	"insmod",
	"tcpdump -w /dev/null",
	"wget http",
	"curl http",
	"crontab -r",
	"mv /etc",
	"mv /usr",
	"mv /var",
	"mv /bin",
	"mv /sbin",
	"mv /lib",
}

// Verdict is the outcome of evaluating a command against the denylist.
type Verdict struct {
	Denied         bool
	MatchedPattern string
}

// Evaluate checks command against the built-in pattern set and extraPatterns,
// in that order, returning the first matching pattern. An empty (after
// trimming) command is denied with the sentinel pattern "empty" — this keeps
// the denial path the single funnel for rejection without side effects, per
// the service's own resolution of that question.
func Evaluate(command string, extraPatterns []string) Verdict {
	if strings.TrimSpace(command) == "" {
		return Verdict{Denied: true, MatchedPattern: "empty"}
	}
	lowerCommand := strings.ToLower(command)

	for _, pattern := range defaultPatterns {
		if strings.Contains(lowerCommand, strings.ToLower(pattern)) {
			return Verdict{Denied: true, MatchedPattern: pattern}
		}
	}
	for _, pattern := range extraPatterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(lowerCommand, strings.ToLower(pattern)) {
			return Verdict{Denied: true, MatchedPattern: pattern}
		}
	}
	return Verdict{Denied: false}
}
