package authz

// Permission codes consumed by the workflow layers (boards, sprints,
// calendars, leave). The catalog is closed: granting an unlisted code fails
// at write time unless it was registered first.
const (
	PermViewTask     = "view_task"
	PermCreateTask   = "create_task"
	PermEditTask     = "edit_task"
	PermEditOwnTask  = "edit_own_task"
	PermEditQAFields = "edit_qa_fields"
	PermDeleteTask   = "delete_task"
	PermAssignTask   = "assign_task"

	PermManageBoard  = "manage_board"
	PermManageSprint = "manage_sprint"

	PermViewCalendar   = "view_calendar"
	PermManageCalendar = "manage_calendar"

	PermRequestLeave = "request_leave"
	PermReviewLeave  = "review_leave"
	PermApproveLeave = "approve_leave"

	PermViewReport = "view_report"

	PermViewDivision   = "view_division"
	PermManageDivision = "manage_division"
	PermManageMembers  = "manage_members"

	PermManageRoles        = "manage_roles"
	PermOverridePermission = "override_permission"
	PermManageAuditLogs    = "manage_audit_logs"
)

// BuiltinPermissions is the seed catalog registered on startup.
var BuiltinPermissions = []Permission{
	{Code: PermViewTask, Category: "task"},
	{Code: PermCreateTask, Category: "task"},
	{Code: PermEditTask, Category: "task"},
	{Code: PermEditOwnTask, Category: "task"},
	{Code: PermEditQAFields, Category: "task"},
	{Code: PermDeleteTask, Category: "task"},
	{Code: PermAssignTask, Category: "task"},
	{Code: PermManageBoard, Category: "board"},
	{Code: PermManageSprint, Category: "sprint"},
	{Code: PermViewCalendar, Category: "calendar"},
	{Code: PermManageCalendar, Category: "calendar"},
	{Code: PermRequestLeave, Category: "leave"},
	{Code: PermReviewLeave, Category: "leave"},
	{Code: PermApproveLeave, Category: "leave"},
	{Code: PermViewReport, Category: "report"},
	{Code: PermViewDivision, Category: "division"},
	{Code: PermManageDivision, Category: "division"},
	{Code: PermManageMembers, Category: "division"},
	{Code: PermManageRoles, Category: "admin"},
	{Code: PermOverridePermission, Category: "admin"},
	{Code: PermManageAuditLogs, Category: "admin"},
}

// DefaultGrants is the seed role grant table for all four layers. Unlisted
// (layer, role, code) combinations deny; grants only ever add.
var DefaultGrants = []RoleGrant{
	// system: support staff get read-only visibility everywhere.
	{Layer: LayerSystem, Role: "support_agent", Permission: PermViewTask},
	{Layer: LayerSystem, Role: "support_agent", Permission: PermViewCalendar},
	{Layer: LayerSystem, Role: "support_agent", Permission: PermViewDivision},

	// division
	{Layer: LayerDivision, Role: "division_head", Permission: PermManageDivision},
	{Layer: LayerDivision, Role: "division_head", Permission: PermViewDivision},
	{Layer: LayerDivision, Role: "division_head", Permission: PermManageMembers},
	{Layer: LayerDivision, Role: "division_head", Permission: PermApproveLeave},
	{Layer: LayerDivision, Role: "division_head", Permission: PermViewReport},
	{Layer: LayerDivision, Role: "division_manager", Permission: PermViewDivision},
	{Layer: LayerDivision, Role: "division_manager", Permission: PermReviewLeave},
	{Layer: LayerDivision, Role: "division_manager", Permission: PermViewReport},
	{Layer: LayerDivision, Role: "division_manager", Permission: PermManageCalendar},
	{Layer: LayerDivision, Role: "division_viewer", Permission: PermViewDivision},
	{Layer: LayerDivision, Role: "division_viewer", Permission: PermViewCalendar},
	{Layer: LayerDivision, Role: "hr_reviewer", Permission: PermReviewLeave},
	{Layer: LayerDivision, Role: "hr_reviewer", Permission: PermViewReport},

	// team
	{Layer: LayerTeam, Role: "team_admin", Permission: PermViewTask},
	{Layer: LayerTeam, Role: "team_admin", Permission: PermCreateTask},
	{Layer: LayerTeam, Role: "team_admin", Permission: PermEditTask},
	{Layer: LayerTeam, Role: "team_admin", Permission: PermDeleteTask},
	{Layer: LayerTeam, Role: "team_admin", Permission: PermAssignTask},
	{Layer: LayerTeam, Role: "team_admin", Permission: PermManageBoard},
	{Layer: LayerTeam, Role: "team_admin", Permission: PermManageMembers},
	{Layer: LayerTeam, Role: "team_lead", Permission: PermViewTask},
	{Layer: LayerTeam, Role: "team_lead", Permission: PermCreateTask},
	{Layer: LayerTeam, Role: "team_lead", Permission: PermEditTask},
	{Layer: LayerTeam, Role: "team_lead", Permission: PermAssignTask},
	{Layer: LayerTeam, Role: "scrum_master", Permission: PermViewTask},
	{Layer: LayerTeam, Role: "scrum_master", Permission: PermManageSprint},
	{Layer: LayerTeam, Role: "scrum_master", Permission: PermManageBoard},
	{Layer: LayerTeam, Role: "product_owner", Permission: PermViewTask},
	{Layer: LayerTeam, Role: "product_owner", Permission: PermCreateTask},
	{Layer: LayerTeam, Role: "product_owner", Permission: PermManageBoard},
	{Layer: LayerTeam, Role: "product_owner", Permission: PermViewReport},
	{Layer: LayerTeam, Role: "qa_lead", Permission: PermViewTask},
	{Layer: LayerTeam, Role: "qa_lead", Permission: PermEditQAFields},
	{Layer: LayerTeam, Role: "member", Permission: PermViewTask},
	{Layer: LayerTeam, Role: "member", Permission: PermCreateTask},
	{Layer: LayerTeam, Role: "member", Permission: PermRequestLeave},
	{Layer: LayerTeam, Role: "member", Permission: PermEditOwnTask,
		Condition: OwnOnly{Field: "assignee"}},

	// project
	{Layer: LayerProject, Role: "project_owner", Permission: PermViewTask},
	{Layer: LayerProject, Role: "project_owner", Permission: PermCreateTask},
	{Layer: LayerProject, Role: "project_owner", Permission: PermEditTask},
	{Layer: LayerProject, Role: "project_owner", Permission: PermDeleteTask},
	{Layer: LayerProject, Role: "project_owner", Permission: PermAssignTask},
	{Layer: LayerProject, Role: "project_owner", Permission: PermManageBoard},
	{Layer: LayerProject, Role: "project_owner", Permission: PermManageSprint},
	{Layer: LayerProject, Role: "project_owner", Permission: PermViewReport},
	{Layer: LayerProject, Role: "project_manager", Permission: PermViewTask},
	{Layer: LayerProject, Role: "project_manager", Permission: PermEditTask},
	{Layer: LayerProject, Role: "project_manager", Permission: PermAssignTask},
	{Layer: LayerProject, Role: "project_manager", Permission: PermManageSprint},
	{Layer: LayerProject, Role: "project_manager", Permission: PermViewReport},
	{Layer: LayerProject, Role: "tech_lead", Permission: PermViewTask},
	{Layer: LayerProject, Role: "tech_lead", Permission: PermEditTask},
	{Layer: LayerProject, Role: "tech_lead", Permission: PermAssignTask},
	{Layer: LayerProject, Role: "developer", Permission: PermViewTask},
	{Layer: LayerProject, Role: "developer", Permission: PermEditOwnTask,
		Condition: OwnOnly{Field: "assignee"}},
	{Layer: LayerProject, Role: "qa_tester", Permission: PermViewTask},
	{Layer: LayerProject, Role: "qa_tester", Permission: PermEditQAFields,
		Condition: FieldScope{Allowed: []string{"test_status", "qa_notes"}}},
	{Layer: LayerProject, Role: "report_viewer", Permission: PermViewReport},
	{Layer: LayerProject, Role: "stakeholder", Permission: PermViewTask},
	{Layer: LayerProject, Role: "stakeholder", Permission: PermViewReport},
	{Layer: LayerProject, Role: "member", Permission: PermViewTask},
}
