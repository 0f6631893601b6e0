// Package model holds the typed documents the coordinator reads from
// and writes back to the document database, plus the small set of
// identifiers used to key the task registry.
package model

import "time"

// VimAccount is a VIM Account document as stored in the "vim_accounts"
// collection.
type VimAccount struct {
	ID            string                 `json:"_id" yaml:"_id"`
	Name          string                 `json:"name" yaml:"name"`
	VimType       string                 `json:"vim_type" yaml:"vim_type"`
	VimURL        string                 `json:"vim_url" yaml:"vim_url"`
	VimTenantName string                 `json:"vim_tenant_name" yaml:"vim_tenant_name"`
	VimUser       string                 `json:"vim_user" yaml:"vim_user"`
	VimPassword   string                 `json:"vim_password" yaml:"vim_password"`
	SchemaVersion string                 `json:"schema_version,omitempty" yaml:"schema_version,omitempty"`
	SchemaType    string                 `json:"schema_type,omitempty" yaml:"schema_type,omitempty"`
	Config        map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
	OperationalState string              `json:"operationalState" yaml:"operationalState"`
	DetailedStatus   string              `json:"detailed-status" yaml:"detailed-status"`
	Admin            Admin               `json:"_admin" yaml:"_admin"`
}

// SdnController is an SDN Controller document as stored in the "sdns"
// collection.
type SdnController struct {
	ID               string                 `json:"_id" yaml:"_id"`
	Name             string                 `json:"name" yaml:"name"`
	Type             string                 `json:"type" yaml:"type"`
	IPAddress        string                 `json:"ip" yaml:"ip"`
	Port             int                    `json:"port" yaml:"port"`
	User             string                 `json:"user,omitempty" yaml:"user,omitempty"`
	Password         string                 `json:"password,omitempty" yaml:"password,omitempty"`
	Description      string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Config           map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
	OperationalState string                 `json:"operationalState" yaml:"operationalState"`
	DetailedStatus   string                 `json:"detailed-status" yaml:"detailed-status"`
	Admin            Admin                  `json:"_admin" yaml:"_admin"`
}

// Admin is the "_admin" bag every document carries; the coordinator
// only cares about the RO-linkage fields and the storage hint used to
// resolve package files.
type Admin struct {
	Deployed *Deployed      `json:"deployed,omitempty" yaml:"deployed,omitempty"`
	Storage  *StorageParams `json:"storage,omitempty" yaml:"storage,omitempty"`
	NsState  string         `json:"nsState,omitempty" yaml:"nsState,omitempty"`
}

// StorageParams locates a package's on-disk (or on-fs-driver) root.
type StorageParams struct {
	Path   string `json:"path" yaml:"path"`
	Folder string `json:"folder" yaml:"folder"`
	PkgDir string `json:"pkg-dir" yaml:"pkg-dir"`
}

// Deployed tracks what this coordinator has already pushed to RO and
// VCA for a given NS, VIM, or SDN record, so retries and recovery
// don't duplicate work.
type Deployed struct {
	RO       *DeployedRO        `json:"RO,omitempty" yaml:"RO,omitempty"`
	NsrIP    map[string]string  `json:"nsr_ip,omitempty" yaml:"nsr_ip,omitempty"`
	VCA      map[string]*VCAEntry `json:"VCA,omitempty" yaml:"VCA,omitempty"`
}

// DeployedRO is the RO-side linkage for a VIM/SDN/NS record: the RO
// resource uuid for that entity, plus (for NS) the per-VNFD and NSD
// uuids registered along the way.
type DeployedRO struct {
	ID        string            `json:"id,omitempty" yaml:"id,omitempty"`
	VnfdID    map[string]string `json:"vnfd_id,omitempty" yaml:"vnfd_id,omitempty"`
	NsdID     string            `json:"nsd_id,omitempty" yaml:"nsd_id,omitempty"`
	NsrID     string            `json:"nsr_id,omitempty" yaml:"nsr_id,omitempty"`
	NsrStatus string            `json:"nsr_status,omitempty" yaml:"nsr_status,omitempty"`
}

// VCAEntry tracks one charm deployment for one member-vnf-index.
type VCAEntry struct {
	Model            string `json:"model" yaml:"model"`
	Application      string `json:"application" yaml:"application"`
	OperationalStatus string `json:"operational-status" yaml:"operational-status"`
	DetailedStatus    string `json:"detailed-status" yaml:"detailed-status"`
	VnfdID            string `json:"vnfd_id" yaml:"vnfd_id"`
}

// Vnfd is a VNF Descriptor document.
type Vnfd struct {
	ID                string                 `json:"id" yaml:"id"`
	MongoID           string                 `json:"_id,omitempty" yaml:"_id,omitempty"`
	Name              string                 `json:"name" yaml:"name"`
	VduList           []Vdu                  `json:"vdu,omitempty" yaml:"vdu,omitempty"`
	VnfConfiguration  *JujuConfig            `json:"vnf-configuration,omitempty" yaml:"vnf-configuration,omitempty"`
	Admin             Admin                  `json:"_admin,omitempty" yaml:"_admin,omitempty"`
	Extra             map[string]interface{} `json:"-" yaml:"-"`
}

// Vdu is one Virtual Deployment Unit within a VNFD.
type Vdu struct {
	ID              string      `json:"id" yaml:"id"`
	CloudInitFile   string      `json:"cloud-init-file,omitempty" yaml:"cloud-init-file,omitempty"`
	CloudInit       string      `json:"cloud-init,omitempty" yaml:"cloud-init,omitempty"`
	VduConfiguration *JujuConfig `json:"vdu-configuration,omitempty" yaml:"vdu-configuration,omitempty"`
}

// JujuConfig names the charm (if any) attached to a VNF or VDU
// configuration block.
type JujuConfig struct {
	Juju *JujuCharm `json:"juju,omitempty" yaml:"juju,omitempty"`
}

// JujuCharm is the charm reference itself.
type JujuCharm struct {
	Charm string `json:"charm" yaml:"charm"`
}

// ConstituentVnfd is one entry in an NSD's constituent-vnfd list.
type ConstituentVnfd struct {
	MemberVnfIndex string `json:"member-vnf-index" yaml:"member-vnf-index"`
	VnfdIDRef      string `json:"vnfd-id-ref" yaml:"vnfd-id-ref"`
}

// Nsd is an NS Descriptor document.
type Nsd struct {
	ID              string            `json:"id" yaml:"id"`
	MongoID         string            `json:"_id,omitempty" yaml:"_id,omitempty"`
	Name            string            `json:"name" yaml:"name"`
	ConstituentVnfd []ConstituentVnfd `json:"constituent-vnfd,omitempty" yaml:"constituent-vnfd,omitempty"`
	Admin           Admin             `json:"_admin,omitempty" yaml:"_admin,omitempty"`
}

// Nsr is an NS Record document, the "nsrs" collection.
type Nsr struct {
	ID                string                 `json:"_id" yaml:"_id"`
	Name              string                 `json:"name" yaml:"name"`
	NsdID             string                 `json:"nsd-id" yaml:"nsd-id"`
	OperationalStatus string                 `json:"operational-status" yaml:"operational-status"`
	ConfigStatus      string                 `json:"config-status" yaml:"config-status"`
	DetailedStatus    string                 `json:"detailed-status" yaml:"detailed-status"`
	Admin             Admin                  `json:"_admin" yaml:"_admin"`
	InstantiateParams map[string]interface{} `json:"instantiate-params,omitempty" yaml:"instantiate-params,omitempty"`
}

// Vnfr is a VNF Record document, the "vnfrs" collection.
type Vnfr struct {
	ID             string    `json:"_id" yaml:"_id"`
	NsrIDRef       string    `json:"nsr-id-ref" yaml:"nsr-id-ref"`
	MemberVnfIndex string    `json:"member-vnf-index-ref" yaml:"member-vnf-index-ref"`
	VnfdID         string    `json:"vnfd-id" yaml:"vnfd-id"`
	VimAccountID   string    `json:"vim-account-id,omitempty" yaml:"vim-account-id,omitempty"`
	IPAddress      string    `json:"ip-address,omitempty" yaml:"ip-address,omitempty"`
	Vdur           []Vdur    `json:"vdur,omitempty" yaml:"vdur,omitempty"`
}

// Vdur is one deployed VDU instance within a VNF record.
type Vdur struct {
	VduIDRef  string `json:"vdu-id-ref" yaml:"vdu-id-ref"`
	VimID     string `json:"vim-id,omitempty" yaml:"vim-id,omitempty"`
	IPAddress string `json:"ip-address,omitempty" yaml:"ip-address,omitempty"`
}

// Operation states for an NsLcmOp, matching the vocabulary the
// original uses verbatim ("COMPLETED", "FAILED", etc).
const (
	OpStateProcessing = "PROCESSING"
	OpStateCompleted  = "COMPLETED"
	OpStateFailed     = "FAILED"
	OpStateFailedTemp = "FAILED_TEMP"
)

// NsLcmOp is an NS LCM Operation document, the "nslcmops" collection.
type NsLcmOp struct {
	ID                string                 `json:"_id" yaml:"_id"`
	NsInstanceID      string                 `json:"nsInstanceId" yaml:"nsInstanceId"`
	OperationType     string                 `json:"lcmOperationType" yaml:"lcmOperationType"`
	OperationState    string                 `json:"operationState" yaml:"operationState"`
	DetailedStatus    string                 `json:"detailed-status" yaml:"detailed-status"`
	StatusEnteredTime int64                  `json:"statusEnteredTime" yaml:"statusEnteredTime"`
	OperationParams   map[string]interface{} `json:"operationParams,omitempty" yaml:"operationParams,omitempty"`
}

// Now is the single place an orchestration-layer component reads wall
// clock time, so behavioral tests can override it.
var Now = func() time.Time { return time.Now() }
