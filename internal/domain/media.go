package domain

// PublishFlags select which local sources a SubConnection sends.
type PublishFlags struct {
	Camera      bool `json:"camera"`
	Screen      bool `json:"screen"`
	CustomVideo bool `json:"custom_video"`
	Mic         bool `json:"mic"`
}

// SubscribeFlags select which remote media a SubConnection receives.
type SubscribeFlags struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

// MediaOptions is the typed join configuration handed to the transport.
type MediaOptions struct {
	Publish   PublishFlags   `json:"publish"`
	Subscribe SubscribeFlags `json:"subscribe"`
}

// SenderOnly reports whether the connection subscribes to nothing.
func (o MediaOptions) SenderOnly() bool {
	return !o.Subscribe.Audio && !o.Subscribe.Video
}

// PurposeOptions returns the fixed options of a purpose. Publish flags never
// overlap between purposes.
func PurposeOptions(p Purpose) MediaOptions {
	switch p {
	case PurposePrimary:
		return MediaOptions{
			Publish:   PublishFlags{Camera: true, Mic: true},
			Subscribe: SubscribeFlags{Audio: true, Video: true},
		}
	case PurposeScreenShare:
		return MediaOptions{Publish: PublishFlags{Screen: true}}
	case PurposeAvatar:
		return MediaOptions{Publish: PublishFlags{CustomVideo: true}}
	default:
		return MediaOptions{}
	}
}
