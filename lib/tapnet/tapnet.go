// Package tapnet creates and destroys the deterministic TAP devices that
// back a VM's network interfaces.
package tapnet

import (
	"fmt"
	"os"
	"strings"

	"github.com/vishvananda/netlink"
)

// Prefix is the naming prefix every managed TAP device carries. recover-vms
// re-derives managed tap names by matching this prefix against a VM's
// persisted network config; an operator who pre-creates a device with this
// prefix will have it adopted, and deleted, on VM teardown. Documented here
// rather than worked around by lengthening the prefix, per design note.
const Prefix = "qt"

// Name computes the deterministic TAP device name for (vmID, nicIndex):
// "qt" + first 8 hex chars of vmID + "n" + nicIndex. The result is always
// <=15 characters (the Linux interface name limit) and uses only [a-z0-9].
func Name(vmID string, nicIndex int) string {
	short := vmID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s%sn%d", Prefix, strings.ToLower(short), nicIndex)
}

// Create creates a TAP device owned by the current user and brings it up.
// If a device with the same name already exists it is deleted first, so
// Create is idempotent under retry.
func Create(name string) error {
	if _, err := netlink.LinkByName(name); err == nil {
		if err := Delete(name); err != nil {
			return fmt.Errorf("delete existing tap %s: %w", name, err)
		}
	}

	tap := &netlink.Tuntap{
		LinkAttrs: netlink.LinkAttrs{Name: name},
		Mode:      netlink.TUNTAP_MODE_TAP,
		Owner:     uint32(os.Getuid()),
		Group:     uint32(os.Getgid()),
	}
	if err := netlink.LinkAdd(tap); err != nil {
		return fmt.Errorf("create tap %s: %w", name, err)
	}

	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("get tap %s: %w", name, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("set tap %s up: %w", name, err)
	}
	return nil
}

// Delete removes a TAP device. Deleting a device that does not exist is not
// an error, since delete-during-rollback and delete-during-teardown are both
// expected to be idempotent.
func Delete(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return nil
	}
	if err := netlink.LinkDel(link); err != nil {
		return fmt.Errorf("delete tap %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a TAP device with the given name is present on the host.
func Exists(name string) bool {
	_, err := netlink.LinkByName(name)
	return err == nil
}

// ListManaged returns the names of all host interfaces carrying the managed
// prefix, regardless of which VM (if any) they belong to.
func ListManaged() ([]string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	var names []string
	for _, l := range links {
		n := l.Attrs().Name
		if strings.HasPrefix(n, Prefix) {
			names = append(names, n)
		}
	}
	return names, nil
}

// CleanupOrphaned deletes every managed TAP device not present in keep,
// returning the number of devices removed. A nil keep set is treated as
// "no VM is alive right now" and still only removes devices carrying the
// managed prefix, never arbitrary interfaces.
func CleanupOrphaned(keep map[string]bool) (int, error) {
	names, err := ListManaged()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, name := range names {
		if keep[name] {
			continue
		}
		if err := Delete(name); err != nil {
			continue
		}
		deleted++
	}
	return deleted, nil
}
