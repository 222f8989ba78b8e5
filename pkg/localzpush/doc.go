// Package localzpush is the public API of the LocalzPush client SDK.
//
// A host application creates one Service with New, passing its project
// credentials and the OS integrations it has (push authorization, location,
// background refresh). It then forwards OS callbacks to the Service:
//
//	svc, err := localzpush.New(localzpush.Options{
//		Settings: localzpush.Settings{ProjectID: id, ProjectKey: key, Region: localzpush.RegionEU},
//		Observer: myObserver,
//		PushAuthorizer: osPush,
//		LocationProvider: osLocation,
//	})
//	if err != nil {
//		return err // configuration errors only
//	}
//	defer svc.Close()
//
//	_ = svc.Start(ctx)
//	_ = svc.DeviceRegisteredWithToken(token) // from the OS
//
// Registration outcomes arrive on the observer from a single SDK goroutine in
// the order they happened. Notification callbacks run on the goroutine that
// called RemoteNotificationReceived.
package localzpush
