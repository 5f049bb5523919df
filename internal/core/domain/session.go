package domain

type SessionID string

type ParticipantID string

type RoomID string

// ConnectionPhase mirrors the peer connection lifecycle.
type ConnectionPhase string

const (
	ConnectionNew          ConnectionPhase = "new"
	ConnectionConnecting   ConnectionPhase = "connecting"
	ConnectionConnected    ConnectionPhase = "connected"
	ConnectionDisconnected ConnectionPhase = "disconnected"
	ConnectionFailed       ConnectionPhase = "failed"
	ConnectionClosed       ConnectionPhase = "closed"
)

// ICEPhase mirrors the ICE agent lifecycle.
type ICEPhase string

const (
	ICENew          ICEPhase = "new"
	ICEChecking     ICEPhase = "checking"
	ICEConnected    ICEPhase = "connected"
	ICECompleted    ICEPhase = "completed"
	ICEDisconnected ICEPhase = "disconnected"
	ICEFailed       ICEPhase = "failed"
	ICEClosed       ICEPhase = "closed"
)

type GatheringPhase string

const (
	GatheringNew        GatheringPhase = "new"
	GatheringInProgress GatheringPhase = "gathering"
	GatheringComplete   GatheringPhase = "complete"
)

type SignalingPhase string

const (
	SignalingStable             SignalingPhase = "stable"
	SignalingHaveLocalOffer     SignalingPhase = "have-local-offer"
	SignalingHaveRemoteOffer    SignalingPhase = "have-remote-offer"
	SignalingHaveLocalPranswer  SignalingPhase = "have-local-pranswer"
	SignalingHaveRemotePranswer SignalingPhase = "have-remote-pranswer"
	SignalingClosed             SignalingPhase = "closed"
)

// ConnectionState is the externally observable state of one peer connection.
// It is owned by the connection core and mutated only through its event loop.
type ConnectionState struct {
	Connected       bool            `json:"connected"`
	ConnectionPhase ConnectionPhase `json:"connection_phase"`
	ICEPhase        ICEPhase        `json:"ice_phase"`
	GatheringPhase  GatheringPhase  `json:"gathering_phase"`
	SignalingPhase  SignalingPhase  `json:"signaling_phase"`
	HasLocalMedia   bool            `json:"has_local_media"`
	HasRemoteMedia  bool            `json:"has_remote_media"`
	Quality         QualityLevel    `json:"quality"`
}

// InitialConnectionState returns the state a fresh connection starts from.
func InitialConnectionState() ConnectionState {
	return ConnectionState{
		ConnectionPhase: ConnectionNew,
		ICEPhase:        ICENew,
		GatheringPhase:  GatheringNew,
		SignalingPhase:  SignalingStable,
		Quality:         QualityGood,
	}
}
