package forge

import "github.com/mcdex/installcore/internal/core"

// blacklistKey identifies one known-broken (loader, Minecraft, loader
// version) triple.
type blacklistKey struct {
	loader, mcVersion, loaderVersion string
}

// blacklist entries are loader/Minecraft/loader-version combinations whose
// installer is known to fail outright (withdrawn release, broken processor
// chain) rather than anything this installer could itself work around.
var blacklist = map[blacklistKey]struct{}{
	{loader: "forge", mcVersion: "1.12.2", loaderVersion: "14.23.5.2851"}: {},
	{loader: "forge", mcVersion: "1.7.10", loaderVersion: "10.13.4.1558"}: {},
}

// CheckBlacklist rejects a known-broken triple; the driver calls it before
// opening the transaction, and Install repeats it for callers that reach the
// installer directly.
func CheckBlacklist(loader, mcVersion, loaderVersion string) error {
	if _, bad := blacklist[blacklistKey{loader, mcVersion, loaderVersion}]; bad {
		return &core.BlacklistedVersionError{
			Loader:       loader,
			MinecraftVsn: mcVersion,
			ModloaderVsn: loaderVersion,
		}
	}
	return nil
}
