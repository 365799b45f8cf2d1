package store

import "time"

// Environment is one remote platform instance
type Environment struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"column:name" json:"name"`
	RemoteBaseURL string    `gorm:"column:remote_base_url" json:"remoteBaseUrl"`
	LocalBaseURL  string    `gorm:"column:local_base_url" json:"localBaseUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Environment) TableName() string { return "environments" }

// Schema groups the methods of one API source
type Schema struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	EnvironmentID int64     `gorm:"column:environment_id" json:"environmentId"`
	Path          string    `gorm:"column:path" json:"path"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (Schema) TableName() string { return "schemas" }

// MethodType is an HTTP verb
type MethodType struct {
	ID   int64  `gorm:"primaryKey" json:"id"`
	Name string `gorm:"column:name" json:"name"`
}

func (MethodType) TableName() string { return "method_types" }

// Method is one API operation
type Method struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	SchemaID     int64      `gorm:"column:schema_id" json:"schemaId"`
	MethodTypeID int64      `gorm:"column:method_type_id" json:"methodTypeId"`
	OperationID  string     `gorm:"column:operation_id" json:"operationId"`
	Path         string     `gorm:"column:path" json:"path"` // path template, e.g. /products/{id}
	Summary      string     `gorm:"column:summary" json:"summary"`
	Description  string     `gorm:"column:description" json:"description"`
	Produces     string     `gorm:"column:produces" json:"produces"`
	CreatedAt    time.Time  `json:"createdAt"`
	MethodType   MethodType `gorm:"foreignKey:MethodTypeID" json:"methodType"`
}

func (Method) TableName() string { return "methods" }

// Parameter locations
const (
	InQuery  = "query"
	InHeader = "header"
	InPath   = "path"
	InBody   = "body"
)

// AllowedParameter is the declared parameter contract of a method.
// A nil MethodID marks a parameter shared by every method of the schema.
type AllowedParameter struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	SchemaID    int64  `gorm:"column:schema_id" json:"schemaId"`
	MethodID    *int64 `gorm:"column:method_id" json:"methodId"`
	In          string `gorm:"column:location" json:"in"`
	Name        string `gorm:"column:name" json:"name"`
	Type        string `gorm:"column:type" json:"type"`
	Required    bool   `gorm:"column:required" json:"required"`
	Description string `gorm:"column:description" json:"description"`
}

func (AllowedParameter) TableName() string { return "allowed_parameters" }

// Descriptor is one recorded request/response template
type Descriptor struct {
	ID                 int64              `gorm:"primaryKey" json:"id"`
	MethodID           *int64             `gorm:"column:method_id" json:"methodId"`
	MethodTypeID       int64              `gorm:"column:method_type_id" json:"methodTypeId"`
	URL                string             `gorm:"column:url" json:"url"`
	Enabled            bool               `gorm:"column:enabled" json:"enabled"`
	RequestStatusCode  int                `gorm:"column:request_status_code" json:"requestStatusCode"`
	ResponseStatusCode int                `gorm:"column:response_status_code" json:"responseStatusCode"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	MethodType         MethodType         `gorm:"foreignKey:MethodTypeID" json:"methodType"`
	RequestHeaders     []RequestHeader    `gorm:"foreignKey:DescriptorID" json:"requestHeaders"`
	RequestBodyFields  []RequestBodyField `gorm:"foreignKey:DescriptorID" json:"requestBodyFields"`
	RequestParameters  []RequestParameter `gorm:"foreignKey:DescriptorID" json:"requestParameters"`
	ResponseHeaders    []ResponseHeader   `gorm:"foreignKey:DescriptorID" json:"responseHeaders"`
	ResponseData       []ResponseData     `gorm:"foreignKey:DescriptorID" json:"responseData"`
}

func (Descriptor) TableName() string { return "descriptors" }

// DefaultResponse returns the variant flagged as default, or nil
func (d *Descriptor) DefaultResponse() *ResponseData {
	for i := range d.ResponseData {
		if d.ResponseData[i].IsDefault {
			return &d.ResponseData[i]
		}
	}
	return nil
}

// KeyValue is the common shape of descriptor header, parameter and body rows
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type RequestHeader struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	DescriptorID int64  `gorm:"column:descriptor_id" json:"descriptorId"`
	Key          string `gorm:"column:key" json:"key"`
	Value        string `gorm:"column:value" json:"value"`
}

func (RequestHeader) TableName() string { return "request_headers" }

type RequestBodyField struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	DescriptorID int64  `gorm:"column:descriptor_id" json:"descriptorId"`
	Key          string `gorm:"column:key" json:"key"`
	Value        string `gorm:"column:value" json:"value"`
}

func (RequestBodyField) TableName() string { return "request_body_fields" }

type RequestParameter struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	DescriptorID int64  `gorm:"column:descriptor_id" json:"descriptorId"`
	Key          string `gorm:"column:key" json:"key"`
	Value        string `gorm:"column:value" json:"value"`
}

func (RequestParameter) TableName() string { return "request_parameters" }

type ResponseHeader struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	DescriptorID int64  `gorm:"column:descriptor_id" json:"descriptorId"`
	Key          string `gorm:"column:key" json:"key"`
	Value        string `gorm:"column:value" json:"value"`
}

func (ResponseHeader) TableName() string { return "response_headers" }

// ResponseData is one possible response body of a descriptor
type ResponseData struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	DescriptorID int64     `gorm:"column:descriptor_id" json:"descriptorId"`
	Data         string    `gorm:"column:data" json:"data"`
	IsDefault    bool      `gorm:"column:is_default" json:"isDefault"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (ResponseData) TableName() string { return "response_data" }
