package domain

// CallType distinguishes audio-only calls from video calls. It only affects
// what the callee's UI does with the incoming-call event; the relay treats
// both the same.
type CallType string

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

func (t CallType) Valid() bool {
	return t == CallAudio || t == CallVideo
}
